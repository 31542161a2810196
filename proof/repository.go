package proof

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the proof does not exist.
var ErrNotFound = errors.New("proof: not found")

const proofColumns = `id, match_id, submitter_id, file_url, note, status::text, review_note, reviewed_at, created_at`

// Repository provides access to proof records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new pending proof.
func (r *Repository) Insert(ctx context.Context, matchID, submitterID, fileURL string, note *string) (Proof, error) {
	const query = `
		INSERT INTO proofs (match_id, submitter_id, file_url, note)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + proofColumns

	p, err := scanProof(r.pool.QueryRow(ctx, query, matchID, submitterID, fileURL, note))
	if err != nil {
		return Proof{}, fmt.Errorf("proof: insert: %w", err)
	}
	return p, nil
}

// GetByID retrieves a proof by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Proof, error) {
	p, err := scanProof(r.pool.QueryRow(ctx, `SELECT `+proofColumns+` FROM proofs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proof{}, ErrNotFound
		}
		return Proof{}, fmt.Errorf("proof: get by id: %w", err)
	}
	return p, nil
}

// LockByID locks the proof row for the rest of the transaction so racing
// reviews of the same proof serialize.
func (r *Repository) LockByID(ctx context.Context, tx pgx.Tx, id string) (Proof, error) {
	p, err := scanProof(tx.QueryRow(ctx, `SELECT `+proofColumns+` FROM proofs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proof{}, ErrNotFound
		}
		return Proof{}, fmt.Errorf("proof: lock by id: %w", err)
	}
	return p, nil
}

// SetStatusTx records the review verdict inside the caller's transaction.
func (r *Repository) SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status, reviewNote *string) (Proof, error) {
	const query = `
		UPDATE proofs
		SET status = $2::proof_status, review_note = $3, reviewed_at = now()
		WHERE id = $1
		RETURNING ` + proofColumns

	p, err := scanProof(tx.QueryRow(ctx, query, id, status, reviewNote))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proof{}, ErrNotFound
		}
		return Proof{}, fmt.Errorf("proof: set status: %w", err)
	}
	return p, nil
}

// ListForMatch returns all proofs for the match, newest first.
func (r *Repository) ListForMatch(ctx context.Context, matchID string) ([]Proof, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+proofColumns+`
		FROM proofs
		WHERE match_id = $1
		ORDER BY created_at DESC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("proof: list for match: %w", err)
	}
	defer rows.Close()

	out := make([]Proof, 0, 4)
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, fmt.Errorf("proof: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("proof: iterate: %w", err)
	}
	return out, nil
}

func scanProof(row pgx.Row) (Proof, error) {
	var p Proof
	return p, row.Scan(
		&p.ID,
		&p.MatchID,
		&p.SubmitterID,
		&p.FileURL,
		&p.Note,
		&p.Status,
		&p.ReviewNote,
		&p.ReviewedAt,
		&p.CreatedAt,
	)
}
