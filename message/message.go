package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"referloop/match"
	"referloop/notify"
)

// ErrEmptyBody signals a blank message body.
var ErrEmptyBody = errors.New("message: body cannot be empty")

// Message is one entry in a match's conversation thread.
type Message struct {
	ID        string
	MatchID   string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

const messageColumns = `id, match_id, sender_id, body, created_at`

// Repository provides access to message records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a message on the match thread.
func (r *Repository) Insert(ctx context.Context, matchID, senderID, body string) (Message, error) {
	const query = `
		INSERT INTO messages (match_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING ` + messageColumns

	m, err := scanMessage(r.pool.QueryRow(ctx, query, matchID, senderID, body))
	if err != nil {
		return Message{}, fmt.Errorf("message: insert: %w", err)
	}
	return m, nil
}

// ListForMatch returns the thread oldest first.
func (r *Repository) ListForMatch(ctx context.Context, matchID string) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE match_id = $1
		ORDER BY created_at
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("message: list: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 16)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("message: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message: iterate: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	return m, row.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Body, &m.CreatedAt)
}

// Store abstracts repository operations for the service.
type Store interface {
	Insert(ctx context.Context, matchID, senderID, body string) (Message, error)
	ListForMatch(ctx context.Context, matchID string) ([]Message, error)
}

// MatchDirectory resolves matches for participant checks.
type MatchDirectory interface {
	GetByID(ctx context.Context, id string) (match.Match, error)
}

// Notifier delivers best-effort notifications.
type Notifier interface {
	Send(ctx context.Context, recipientID string, kind notify.Kind, matchID string)
}

// Service runs the per-match conversation thread. Only the asker and giver
// may read or write it; anyone else is told the match does not exist, so
// match ids cannot be probed through the thread.
type Service struct {
	repo     Store
	matches  MatchDirectory
	notifier Notifier
}

func NewService(repo Store, matches MatchDirectory) *Service {
	return &Service{repo: repo, matches: matches}
}

// WithNotifier attaches a best-effort notifier.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Send posts a message to the match thread and notifies the other
// participant.
func (s *Service) Send(ctx context.Context, matchID, senderID, body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyBody
	}
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return Message{}, err
	}
	if m.AskerID != senderID && m.GiverID != senderID {
		return Message{}, match.ErrNotFound
	}

	msg, err := s.repo.Insert(ctx, matchID, senderID, body)
	if err != nil {
		return Message{}, err
	}

	if s.notifier != nil {
		recipient := m.AskerID
		if senderID == m.AskerID {
			recipient = m.GiverID
		}
		s.notifier.Send(ctx, recipient, notify.KindNewMessage, m.ID)
	}
	return msg, nil
}

// Thread returns the match conversation to one of its participants.
func (s *Service) Thread(ctx context.Context, matchID, actorID string) ([]Message, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.AskerID != actorID && m.GiverID != actorID {
		return nil, match.ErrNotFound
	}
	return s.repo.ListForMatch(ctx, matchID)
}
