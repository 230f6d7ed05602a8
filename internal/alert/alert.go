// Package alert sends failure notifications and drives the safe-mode LED
// pattern after the control loop dies.
package alert

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"
)

// ErrThrottled is returned when a notification is dropped by the rate limiter.
var ErrThrottled = errors.New("alert: throttled")

// Notifier delivers an alert with an HTML body.
type Notifier interface {
	Notify(ctx context.Context, subject, htmlBody string) error
}

// Output is the LED sink used for the safe-mode pattern.
type Output interface {
	SetLevel(duty float64) error
}

// isoLayout matches an ISO 8601 local timestamp with microseconds.
const isoLayout = "2006-01-02T15:04:05.000000"

// Subject returns the safe-mode email subject for a failure at t.
func Subject(t time.Time) string {
	return fmt.Sprintf("SOS Mode on Lamp at %s EOM", t.Format(isoLayout))
}

// Body renders the failure and its stack trace as HTML.
func Body(cause error, stack []byte) string {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	return "<p><b>" + html.EscapeString(msg) + "</b></p>\n<pre>" + html.EscapeString(string(stack)) + "</pre>\n"
}

// SafeMode reports a fatal failure and blinks the LED until stopped.
type SafeMode struct {
	Notifier Notifier // nil skips the email
	Output   Output
	Logger   *zap.Logger
}

// Run sends the SOS notification and then alternates the LED between 100
// and 0 on every tick until ctx is done. Notification errors are logged,
// never returned; the blink pattern runs regardless.
func (s *SafeMode) Run(ctx context.Context, cause error, stack []byte, now time.Time, tick <-chan time.Time) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if s.Notifier != nil {
		logger.Info("sending sos email")
		if err := s.Notifier.Notify(ctx, Subject(now), Body(cause, stack)); err != nil {
			logger.Error("sos email failed", zap.Error(err))
		}
	}

	logger.Warn("sos led pattern active")
	on := true
	if err := s.Output.SetLevel(100); err != nil {
		logger.Error("set led", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			on = !on
			level := 0.0
			if on {
				level = 100
			}
			if err := s.Output.SetLevel(level); err != nil {
				logger.Error("set led", zap.Error(err))
			}
		}
	}
}
