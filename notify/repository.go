package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the notification does not exist or belongs to someone
// else.
var ErrNotFound = errors.New("notify: not found")

const notificationColumns = `id, profile_id, kind::text, ref_id, read, created_at`

// Repository provides access to notification records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a notification for the profile.
func (r *Repository) Insert(ctx context.Context, profileID string, kind Kind, refID *string) (Notification, error) {
	const query = `
		INSERT INTO notifications (profile_id, kind, ref_id)
		VALUES ($1, $2::notification_kind, $3)
		RETURNING ` + notificationColumns

	n, err := scanNotification(r.pool.QueryRow(ctx, query, profileID, kind, refID))
	if err != nil {
		return Notification{}, fmt.Errorf("notify: insert: %w", err)
	}
	return n, nil
}

// ListForProfile returns the newest notifications for the profile.
func (r *Repository) ListForProfile(ctx context.Context, profileID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0, 8)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notify: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate: %w", err)
	}
	return out, nil
}

// MarkRead flips one notification to read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, id, profileID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND profile_id = $2`, id, profileID)
	if err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification for the profile.
func (r *Repository) MarkAllRead(ctx context.Context, profileID string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE profile_id = $1 AND NOT read`, profileID); err != nil {
		return fmt.Errorf("notify: mark all read: %w", err)
	}
	return nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	return n, row.Scan(&n.ID, &n.ProfileID, &n.Kind, &n.RefID, &n.Read, &n.CreatedAt)
}
