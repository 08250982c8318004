package port

import (
	"context"

	"invoicer/internal/domain"
)

// Notifier announces that a batch session reached a terminal status.
type Notifier interface {
	SessionFinished(ctx context.Context, session *domain.Session, archiveURL string) error
}
