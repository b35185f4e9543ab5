package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/metrics"
)

// Mailer delivers one message to a list of recipients
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// NotificationDispatcher formats danger events and hands them to a Mailer
type NotificationDispatcher struct {
	mailer  Mailer
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotificationDispatcher creates a dispatcher. timeout bounds each Send call.
func NewNotificationDispatcher(mailer Mailer, timeout time.Duration, logger *slog.Logger) *NotificationDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationDispatcher{
		mailer:  mailer,
		timeout: timeout,
		logger:  logger,
	}
}

// Dispatch sends the alert for event to every recipient in a single message.
// An empty recipient list is a successful no-op.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, userID int64, recipients []string, event entities.DangerEvent) error {
	if len(recipients) == 0 {
		d.logger.Debug("no recipients, skipping dispatch", "user_id", userID, "location", event.Location)
		return nil
	}

	subject, body := FormatAlert(event)

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.mailer.Send(sendCtx, recipients, subject, body)
	metrics.RecordDispatch(err)
	if err != nil {
		return fmt.Errorf("%w: user %d, %d recipients: %w", entities.ErrDispatch, userID, len(recipients), err)
	}

	d.logger.Info("alert dispatched",
		"user_id", userID,
		"location", event.Location,
		"level_cm", event.LevelCm,
		"recipients", len(recipients),
	)
	return nil
}

// FormatAlert builds the subject and body of an alert email
func FormatAlert(event entities.DangerEvent) (subject, body string) {
	subject = fmt.Sprintf("Water level alert: %s at %d cm", event.Location, event.LevelCm)

	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "the water level at station %s has reached %d cm, above the alert threshold you set.\n\n", event.Location, event.LevelCm)
	b.WriteString("Please check the situation on the river and take care.\n\n")
	b.WriteString("-- \nwaterwatch\n")
	return subject, b.String()
}
