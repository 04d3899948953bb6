package service

import (
	"sync"

	"go.uber.org/zap"
)

// background runs fire-and-forget tasks and lets shutdown wait for them.
type background struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// Go runs fn on its own goroutine. A panic in fn is logged and swallowed.
func (b *background) Go(task string, fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				b.logger.Error("background task panicked", zap.String("task", task), zap.Any("panic", p))
			}
		}()
		fn()
	}()
}

// Wait blocks until every started task has returned.
func (b *background) Wait() {
	b.wg.Wait()
}
