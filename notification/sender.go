package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"grievance/models"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sender is the interface for notification senders
type Sender interface {
	Send(ctx context.Context, notification *models.Notification) error
}

// DefaultSendGridURL is the SendGrid v3 mail endpoint
const DefaultSendGridURL = "https://api.sendgrid.com/v3/mail/send"

// Config configures an EmailSender
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
	// ShadowAddress, when set, receives every email instead of the real recipient.
	ShadowAddress string
	Endpoint      string

	RatePerSecond   float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration

	HTTPClient *http.Client
}

// EmailSender sends email through SendGrid. Without an API key it only logs
// what would have been sent.
type EmailSender struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewEmailSender creates an email sender. Zero values in cfg get defaults.
func NewEmailSender(cfg Config, logger *zap.Logger) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSendGridURL
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = "noreply@grievance.local"
	}
	if cfg.FromName == "" {
		cfg.FromName = "IT Grievance System"
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	logger = logger.Named("email")
	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sendgrid",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("email circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &EmailSender{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: breaker,
		logger:  logger,
	}
}

// Validate validates an email notification
func (s *EmailSender) Validate(n *models.Notification) error {
	if strings.TrimSpace(n.Recipient) == "" || !strings.Contains(n.Recipient, "@") {
		return ErrInvalidRecipient
	}
	return nil
}

// Send sends one email. In shadow mode the recipient is replaced by the
// shadow address; n itself is not modified.
func (s *EmailSender) Send(ctx context.Context, n *models.Notification) error {
	if err := s.Validate(n); err != nil {
		return err
	}
	msg := *n
	if s.cfg.ShadowAddress != "" {
		msg.Recipient = s.cfg.ShadowAddress
	}

	if s.cfg.APIKey == "" {
		s.logger.Info("email delivery not configured; logging instead",
			zap.String("recipient", msg.Recipient),
			zap.String("subject", msg.Subject))
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return &NotificationError{Message: "rate limiter", Err: err}
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.sendViaSendGrid(ctx, &msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &NotificationError{Message: "email circuit open", Err: err}
	}
	return err
}

func (s *EmailSender) sendViaSendGrid(ctx context.Context, n *models.Notification) error {
	body := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]interface{}{{"email": n.Recipient}}},
		},
		"from":    map[string]string{"email": s.cfg.FromEmail, "name": s.cfg.FromName},
		"subject": n.Subject,
		"content": []map[string]string{{"type": "text/plain", "value": n.Body}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode sendgrid payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &NotificationError{Message: "send cancelled", Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build sendgrid request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("sendgrid status %d", resp.StatusCode)
		// Client errors other than throttling won't succeed on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return &NotificationError{Message: "delivery failed", Err: lastErr}
}

// Errors
var (
	ErrInvalidRecipient = &NotificationError{Message: "invalid recipient"}
)

// NotificationError represents a notification error
type NotificationError struct {
	Message string
	Err     error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
