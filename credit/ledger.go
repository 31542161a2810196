package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInsufficientCredit signals the profile holds no available credit to escrow.
	ErrInsufficientCredit = errors.New("credit: no available credit")
	// ErrInvalidState signals a transition attempted against a credit that is
	// not in the required lifecycle state.
	ErrInvalidState = errors.New("credit: invalid state transition")
	// ErrNotFound signals the credit does not exist.
	ErrNotFound = errors.New("credit: not found")
)

const creditColumns = `id, profile_id, status::text, source::text, created_at`

// Ledger owns credit records and their status transitions. Escrow, spend and
// return run inside the caller's transaction so that a match mutation and its
// ledger side effect commit or roll back together.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger wires a pgxpool-backed ledger.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Grant mints one available credit for the profile.
func (l *Ledger) Grant(ctx context.Context, profileID string, source Source) (Credit, error) {
	const query = `
		INSERT INTO credits (profile_id, status, source)
		VALUES ($1, 'available'::credit_status, $2::credit_source)
		RETURNING ` + creditColumns

	c, err := scanCredit(l.pool.QueryRow(ctx, query, profileID, source))
	if err != nil {
		return Credit{}, fmt.Errorf("credit: grant: %w", err)
	}
	return c, nil
}

// GrantTx mints one available credit inside the caller's transaction.
func (l *Ledger) GrantTx(ctx context.Context, tx pgx.Tx, profileID string, source Source) (Credit, error) {
	const query = `
		INSERT INTO credits (profile_id, status, source)
		VALUES ($1, 'available'::credit_status, $2::credit_source)
		RETURNING ` + creditColumns

	c, err := scanCredit(tx.QueryRow(ctx, query, profileID, source))
	if err != nil {
		return Credit{}, fmt.Errorf("credit: grant tx: %w", err)
	}
	return c, nil
}

// EscrowOneAvailable claims the oldest available credit owned by the profile
// and flips it to escrowed, returning its id. SKIP LOCKED serializes racing
// escrows of the same last credit: at most one caller claims it, the rest get
// ErrInsufficientCredit.
func (l *Ledger) EscrowOneAvailable(ctx context.Context, tx pgx.Tx, profileID string) (string, error) {
	const query = `
		UPDATE credits
		SET status = 'escrowed'::credit_status
		WHERE id = (
			SELECT id FROM credits
			WHERE profile_id = $1 AND status = 'available'::credit_status
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`

	var id string
	if err := tx.QueryRow(ctx, query, profileID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInsufficientCredit
		}
		return "", fmt.Errorf("credit: escrow one available: %w", err)
	}
	return id, nil
}

// Spend moves an escrowed credit to its terminal spent state. The caller's
// status guard on the match/proof prevents double spends; this is not
// idempotent by itself.
func (l *Ledger) Spend(ctx context.Context, tx pgx.Tx, creditID string) error {
	const query = `
		UPDATE credits
		SET status = 'spent'::credit_status
		WHERE id = $1 AND status = 'escrowed'::credit_status
	`

	tag, err := tx.Exec(ctx, query, creditID)
	if err != nil {
		return fmt.Errorf("credit: spend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return l.classifyMiss(ctx, tx, creditID)
	}
	return nil
}

// Return moves an escrowed credit to its terminal returned state and mints a
// replacement available credit for the original owner, restoring the owner's
// balance to its pre-escrow level. Returns the owner profile id.
func (l *Ledger) Return(ctx context.Context, tx pgx.Tx, creditID string) (string, error) {
	const query = `
		UPDATE credits
		SET status = 'returned'::credit_status
		WHERE id = $1 AND status = 'escrowed'::credit_status
		RETURNING profile_id
	`

	var ownerID string
	if err := tx.QueryRow(ctx, query, creditID).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", l.classifyMiss(ctx, tx, creditID)
		}
		return "", fmt.Errorf("credit: return: %w", err)
	}

	if _, err := l.GrantTx(ctx, tx, ownerID, SourceGrant); err != nil {
		return "", err
	}
	return ownerID, nil
}

// BalanceFor reports credit counts per status for the profile.
func (l *Ledger) BalanceFor(ctx context.Context, profileID string) (Balance, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'available'),
			COUNT(*) FILTER (WHERE status = 'escrowed'),
			COUNT(*) FILTER (WHERE status = 'spent'),
			COUNT(*) FILTER (WHERE status = 'returned')
		FROM credits
		WHERE profile_id = $1
	`

	var b Balance
	if err := l.pool.QueryRow(ctx, query, profileID).Scan(&b.Available, &b.Escrowed, &b.Spent, &b.Returned); err != nil {
		return Balance{}, fmt.Errorf("credit: balance: %w", err)
	}
	return b, nil
}

// classifyMiss distinguishes a missing credit from one in the wrong state
// after a guarded update matched no rows.
func (l *Ledger) classifyMiss(ctx context.Context, tx pgx.Tx, creditID string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status::text FROM credits WHERE id = $1`, creditID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("credit: inspect state: %w", err)
	}
	return fmt.Errorf("%w: credit %s is %s, want escrowed", ErrInvalidState, creditID, status)
}

func scanCredit(row pgx.Row) (Credit, error) {
	var c Credit
	return c, row.Scan(&c.ID, &c.ProfileID, &c.Status, &c.Source, &c.CreatedAt)
}
