package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("match: not found")
	ErrDuplicate = errors.New("match: listing pair already matched")
)

const matchColumns = `id, ask_listing_id, give_listing_id, asker_id, giver_id,
	escrow_credit_id, status::text, acknowledge_by, submit_by, created_at, updated_at`

// InsertParams enumerates the fields required to create a match row.
type InsertParams struct {
	AskListingID   string
	GiveListingID  string
	AskerID        string
	GiverID        string
	EscrowCreditID string
	AcknowledgeBy  time.Time
	SubmitBy       time.Time
}

// Repository provides access to match records. Mutations run inside the
// caller's transaction so a status change and its ledger side effect commit
// together.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PairExists reports whether the listing pair already has a match.
func (r *Repository) PairExists(ctx context.Context, tx pgx.Tx, askListingID, giveListingID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE ask_listing_id = $1 AND give_listing_id = $2)`,
		askListingID, giveListingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("match: check pair: %w", err)
	}
	return exists, nil
}

// InsertTx creates a match inside the caller's transaction. The unique
// constraint on the listing pair backstops racing creates.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, params InsertParams) (Match, error) {
	const query = `
		INSERT INTO matches (ask_listing_id, give_listing_id, asker_id, giver_id,
			escrow_credit_id, status, acknowledge_by, submit_by)
		VALUES ($1, $2, $3, $4, $5, 'pending'::match_status, $6, $7)
		RETURNING ` + matchColumns

	m, err := scanMatch(tx.QueryRow(ctx, query,
		params.AskListingID, params.GiveListingID, params.AskerID, params.GiverID,
		params.EscrowCreditID, params.AcknowledgeBy, params.SubmitBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Match{}, ErrDuplicate
		}
		return Match{}, fmt.Errorf("match: insert: %w", err)
	}
	return m, nil
}

// GetByID retrieves a match by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Match, error) {
	m, err := scanMatch(r.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("match: get by id: %w", err)
	}
	return m, nil
}

// LockByID locks the match row for the rest of the transaction. Every status
// transition goes through this lock, so concurrent transitions on the same
// match serialize.
func (r *Repository) LockByID(ctx context.Context, tx pgx.Tx, id string) (Match, error) {
	m, err := scanMatch(tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("match: lock by id: %w", err)
	}
	return m, nil
}

// MarkAcceptedTx moves the match to accepted and resets the submit deadline.
func (r *Repository) MarkAcceptedTx(ctx context.Context, tx pgx.Tx, id string, submitBy time.Time) (Match, error) {
	const query = `
		UPDATE matches
		SET status = 'accepted'::match_status, submit_by = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + matchColumns

	m, err := scanMatch(tx.QueryRow(ctx, query, id, submitBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("match: mark accepted: %w", err)
	}
	return m, nil
}

// ClearEscrowTx drops the escrow reference once the escrowed credit has
// reached a terminal state.
func (r *Repository) ClearEscrowTx(ctx context.Context, tx pgx.Tx, id string) (Match, error) {
	const query = `
		UPDATE matches
		SET escrow_credit_id = NULL, updated_at = now()
		WHERE id = $1
		RETURNING ` + matchColumns

	m, err := scanMatch(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("match: clear escrow: %w", err)
	}
	return m, nil
}

// SetStatusTx updates the status of an already-locked match.
func (r *Repository) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) (Match, error) {
	const query = `
		UPDATE matches
		SET status = $2::match_status, updated_at = now()
		WHERE id = $1
		RETURNING ` + matchColumns

	m, err := scanMatch(tx.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Match{}, ErrNotFound
		}
		return Match{}, fmt.Errorf("match: set status: %w", err)
	}
	return m, nil
}

// DeleteTx removes a declined match inside the caller's transaction.
func (r *Repository) DeleteTx(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("match: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForProfile returns matches where the profile is asker or giver, newest
// first.
func (r *Repository) ListForProfile(ctx context.Context, profileID string) ([]Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE asker_id = $1 OR giver_id = $1
		ORDER BY created_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("match: list for profile: %w", err)
	}
	defer rows.Close()

	out := make([]Match, 0, 8)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("match: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match: iterate: %w", err)
	}
	return out, nil
}

// ListExpirable returns ids of matches past their deadline as of now: pending
// past acknowledge_by, or accepted past submit_by with no approved proof.
// Candidates are re-verified under lock before anything changes.
func (r *Repository) ListExpirable(ctx context.Context, now time.Time) ([]string, error) {
	const query = `
		SELECT m.id
		FROM matches m
		WHERE (m.status = 'pending'::match_status AND m.acknowledge_by < $1)
		   OR (m.status = 'accepted'::match_status AND m.submit_by < $1
		       AND NOT EXISTS (
		           SELECT 1 FROM proofs p
		           WHERE p.match_id = m.id AND p.status = 'approved'::proof_status
		       ))
		ORDER BY m.created_at
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("match: list expirable: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("match: scan expirable: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match: iterate expirable: %w", err)
	}
	return ids, nil
}

// ApprovedProofExistsTx reports whether the match already has an approved
// proof, read inside the caller's transaction.
func (r *Repository) ApprovedProofExistsTx(ctx context.Context, tx pgx.Tx, matchID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM proofs WHERE match_id = $1 AND status = 'approved'::proof_status)`,
		matchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("match: check approved proof: %w", err)
	}
	return exists, nil
}

func scanMatch(row pgx.Row) (Match, error) {
	var m Match
	return m, row.Scan(
		&m.ID,
		&m.AskListingID,
		&m.GiveListingID,
		&m.AskerID,
		&m.GiverID,
		&m.EscrowCreditID,
		&m.Status,
		&m.AcknowledgeBy,
		&m.SubmitBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
}
