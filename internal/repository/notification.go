package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perkwise/perkdocs/internal/domain"
)

// NotificationRepository records processing-outcome notifications for
// users. Delivery to the user is handled elsewhere; the pipeline only
// appends records here.
type NotificationRepository struct {
	db dbtx
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: pool}
}

// Notify appends a notification about a document's processing outcome.
func (r *NotificationRepository) Notify(ctx context.Context, userID, documentName string, status domain.DocumentStatus, errorMessage string) error {
	var title, message string
	switch status {
	case domain.DocumentStatusProcessed:
		title = "Document processed"
		message = fmt.Sprintf("%q is now searchable.", documentName)
	case domain.DocumentStatusFailed:
		title = "Document processing failed"
		message = fmt.Sprintf("%q could not be processed: %s", documentName, errorMessage)
	default:
		title = "Document update"
		message = fmt.Sprintf("%q is now %s.", documentName, status)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (id, user_id, title, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), userID, title, message, string(status), time.Now().UTC(),
	)
	return err
}
