package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/mediatheque/internal/config"
)

// LogSender writes messages to the logger instead of sending them. Used when
// no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "notification",
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)

	return nil
}

// New builds the dispatcher described by the notification config: SMTP when a
// host is set, the log otherwise.
func New(cfg config.NotificationConfig, dailyRate decimal.Decimal, loc *time.Location, logger *slog.Logger) (Dispatcher, error) {
	renderer, err := NewRenderer(cfg.LibraryName, dailyRate, loc)
	if err != nil {
		return nil, err
	}

	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, notifications are logged only")
		return NewMailer(renderer, NewLogSender(logger)), nil
	}

	sender := NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From, cfg.Timeout)
	return NewMailer(renderer, sender), nil
}
