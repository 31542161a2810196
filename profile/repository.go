package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested profile does not exist.
var ErrNotFound = errors.New("profile: not found")

const profileColumns = `id, email, name, image, total_matches, successful_matches, completion_rate, created_at, updated_at`

// Repository provides access to profile records and their reputation counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertByEmail creates the profile on first sight of a verified email and
// refreshes name/image when the identity provider supplies them.
func (r *Repository) UpsertByEmail(ctx context.Context, email string, name, image *string) (Profile, error) {
	const query = `
		INSERT INTO profiles (email, name, image)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET name = COALESCE(EXCLUDED.name, profiles.name),
		    image = COALESCE(EXCLUDED.image, profiles.image),
		    updated_at = now()
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, email, name, image))
	if err != nil {
		return Profile{}, fmt.Errorf("profile: upsert by email: %w", err)
	}
	return p, nil
}

// GetByEmail retrieves a profile by its email key.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: get by email: %w", err)
	}
	return p, nil
}

// GetByID retrieves a profile by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: get by id: %w", err)
	}
	return p, nil
}

// UpdateName changes the display name of a profile.
func (r *Repository) UpdateName(ctx context.Context, id, name string) (Profile, error) {
	const query = `
		UPDATE profiles
		SET name = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: update name: %w", err)
	}
	return p, nil
}

// RecordAcceptedMatch bumps total_matches inside the caller's transaction and
// recomputes the cached completion rate from the post-increment counters.
func (r *Repository) RecordAcceptedMatch(ctx context.Context, tx pgx.Tx, id string) error {
	var successful, total int
	if err := tx.QueryRow(ctx, `
		SELECT successful_matches, total_matches
		FROM profiles
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&successful, &total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("profile: lock for accept: %w", err)
	}

	total++
	rate := CompletionRate(successful, total)
	if _, err := tx.Exec(ctx, `
		UPDATE profiles
		SET total_matches = $2, completion_rate = $3, updated_at = now()
		WHERE id = $1
	`, id, total, rate); err != nil {
		return fmt.Errorf("profile: record accepted match: %w", err)
	}
	return nil
}

// RecordSuccessfulMatch bumps successful_matches inside the caller's
// transaction and recomputes the cached completion rate.
func (r *Repository) RecordSuccessfulMatch(ctx context.Context, tx pgx.Tx, id string) error {
	var successful, total int
	if err := tx.QueryRow(ctx, `
		SELECT successful_matches, total_matches
		FROM profiles
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&successful, &total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("profile: lock for success: %w", err)
	}

	successful++
	rate := CompletionRate(successful, total)
	if _, err := tx.Exec(ctx, `
		UPDATE profiles
		SET successful_matches = $2, completion_rate = $3, updated_at = now()
		WHERE id = $1
	`, id, successful, rate); err != nil {
		return fmt.Errorf("profile: record successful match: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	return p, row.Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.Image,
		&p.TotalMatches,
		&p.SuccessfulMatches,
		&p.CompletionRate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}
