package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RetryPolicy bounds redelivery of one payload. MaxAttempts counts the first
// try; Delay is the pause between consecutive attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

var (
	// NoRetry delivers once and reports the outcome.
	NoRetry = RetryPolicy{MaxAttempts: 1}
	// LivechatRetry gives livechat forwards three extra attempts, one second
	// apart, before the delivery is declared failed.
	LivechatRetry = RetryPolicy{MaxAttempts: 4, Delay: time.Second}
)

// DeliveryError reports an exhausted delivery. Origin names the logical
// destination for operators; Status is the last HTTP status observed, zero
// when the final attempt failed at the transport layer.
type DeliveryError struct {
	Origin   string
	Status   int
	Attempts int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed after %d attempt(s), last status %d", e.Origin, e.Attempts, e.Status)
}

// Dispatcher posts JSON payloads to webhook destinations. It is safe for
// concurrent use; every delivery is independent.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
	debug  bool
}

func NewDispatcher(log *slog.Logger, client *http.Client, debug bool) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: log.With(slog.String("service", "webhook")),
		debug:  debug,
	}
}

// Deliver marshals payload once and POSTs it to dest until an attempt returns
// HTTP 200 or the policy is exhausted. Only 200 counts as delivered; any
// other status, including other 2xx codes, is a failed attempt. The wait
// between attempts honors ctx cancellation.
func (d *Dispatcher) Deliver(ctx context.Context, dest Destination, payload any, origin string, policy RetryPolicy) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", origin, err)
	}
	if d.debug {
		d.logger.Debug("delivering payload",
			slog.String("origin", origin),
			slog.String("endpoint", dest.Endpoint()),
			slog.String("body", string(body)))
	}

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	lastStatus := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}

		status, err := d.post(ctx, dest, body)
		if err != nil {
			lastStatus = 0
			d.logger.Warn("delivery attempt failed",
				slog.String("origin", origin),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			continue
		}
		if status == http.StatusOK {
			return nil
		}
		lastStatus = status
		d.logger.Warn("delivery attempt rejected",
			slog.String("origin", origin),
			slog.Int("attempt", attempt),
			slog.Int("status", status))
	}

	return &DeliveryError{Origin: origin, Status: lastStatus, Attempts: attempts}
}

func (d *Dispatcher) post(ctx context.Context, dest Destination, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+dest.Credential())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
