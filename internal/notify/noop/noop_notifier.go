package noop

import (
	"context"

	"invoicer/internal/domain"
	"invoicer/internal/logger"
	"invoicer/internal/port"
)

type noopNotifier struct{}

// NewNoopNotifier creates a Notifier that only logs finished sessions.
func NewNoopNotifier() port.Notifier {
	return noopNotifier{}
}

func (noopNotifier) SessionFinished(ctx context.Context, sess *domain.Session, archiveURL string) error {
	logger.C(ctx).Info().
		Str("session_id", sess.ID).
		Str("status", string(sess.Status)).
		Int("successful", sess.Successful).
		Int("failed", sess.Failed).
		Str("archive_url", archiveURL).
		Msg("[NOOP NOTIFY] session finished")
	return nil
}
