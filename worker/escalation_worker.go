package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grievance/models"

	"go.uber.org/zap"
)

// PassRunner runs one escalation scan pass
type PassRunner interface {
	ProcessEscalations(ctx context.Context) (*models.PassReport, error)
}

// EscalationWorker is a background worker that periodically runs escalation passes
type EscalationWorker struct {
	runner   PassRunner
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	runNow   chan struct{}
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(runner PassRunner, interval time.Duration, logger *zap.Logger) *EscalationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &EscalationWorker{
		runner:   runner,
		interval: interval,
		logger:   logger.Named("worker"),
		runNow:   make(chan struct{}, 1),
	}
}

// Start starts the worker loop in its own goroutine. A pass runs immediately,
// then on every tick.
func (w *EscalationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.logger.Warn("escalation worker is already running")
		return
	}

	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.logger.Info("escalation worker started", zap.Duration("interval", w.interval))

	go w.run(ctx, w.stopChan, w.done)
}

// Stop signals the loop and waits for an in-flight pass to finish.
func (w *EscalationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	w.logger.Info("stopping escalation worker")
	<-done
	w.logger.Info("escalation worker stopped")
}

// Trigger asks the loop for an extra pass without waiting for the next tick.
// Triggers that arrive while one is queued are coalesced.
func (w *EscalationWorker) Trigger() {
	select {
	case w.runNow <- struct{}{}:
	default:
	}
}

func (w *EscalationWorker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-passCtx.Done():
		}
	}()

	w.processEscalations(passCtx)

	for {
		select {
		case <-ticker.C:
			w.processEscalations(passCtx)
		case <-w.runNow:
			w.processEscalations(passCtx)
		case <-passCtx.Done():
			return
		}
	}
}

// processEscalations runs one pass. Errors and panics are logged so the next
// tick still runs.
func (w *EscalationWorker) processEscalations(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("escalation pass panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()

	report, err := w.runner.ProcessEscalations(ctx)
	if err != nil {
		w.logger.Error("error processing escalations", zap.Error(err))
		return
	}
	if report == nil {
		return
	}

	for _, r := range report.Results {
		if r.Error != "" {
			w.logger.Warn("complaint not escalated",
				zap.Int64("complaint_id", r.ComplaintID), zap.String("error", r.Error))
		}
	}
	w.logger.Info("escalation processing completed",
		zap.String("pass_id", report.PassID),
		zap.Duration("duration", report.Duration),
		zap.Int("due", report.Due),
		zap.Int("escalated", report.Escalated),
		zap.Int("failed", report.Failed))
}
