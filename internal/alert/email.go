package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweeney/lampd/internal/metrics"
)

// EmailConfig configures an EmailNotifier.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// MinInterval is the minimum gap between emails; <= 0 disables throttling.
	MinInterval time.Duration
}

// EmailNotifier sends alerts over SMTP with STARTTLS.
type EmailNotifier struct {
	cfg     EmailConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	send    func(ctx context.Context, m *mail.Msg) error
}

// NewEmailNotifier creates a notifier. From defaults to Username.
func NewEmailNotifier(cfg EmailConfig, logger *zap.Logger) (*EmailNotifier, error) {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("alert: smtp host, sender and recipients are required")
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	n := &EmailNotifier{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	n.send = n.dialAndSend
	return n, nil
}

// Notify sends one email unless the rate limit has been reached.
func (n *EmailNotifier) Notify(ctx context.Context, subject, htmlBody string) error {
	if !n.limiter.Allow() {
		metrics.ObserveAlert(metrics.OutcomeThrottled)
		n.logger.Warn("alert throttled", zap.String("subject", subject))
		return ErrThrottled
	}

	m, err := n.message(subject, htmlBody)
	if err != nil {
		metrics.ObserveAlert(metrics.OutcomeError)
		return err
	}
	if err := n.send(ctx, m); err != nil {
		metrics.ObserveAlert(metrics.OutcomeError)
		return fmt.Errorf("send email: %w", err)
	}
	metrics.ObserveAlert(metrics.OutcomeSuccess)
	n.logger.Info("alert sent", zap.String("subject", subject), zap.Strings("to", n.cfg.To))
	return nil
}

func (n *EmailNotifier) message(subject, htmlBody string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(n.cfg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextHTML, htmlBody)
	return m, nil
}

func (n *EmailNotifier) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	c, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, m)
}
