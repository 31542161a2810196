package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the listing does not exist or is not visible to
	// the caller.
	ErrNotFound = errors.New("listing: not found")
	// ErrInUse signals the listing is referenced by a match and cannot be
	// deleted while that match is live.
	ErrInUse = errors.New("listing: referenced by a match")
)

const listingColumns = `id, profile_id, type::text, role, level, target_company, notes, active, created_at, updated_at`

// Repository provides access to listing records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new listing owned by the profile.
func (r *Repository) Create(ctx context.Context, l Listing) (Listing, error) {
	const query = `
		INSERT INTO listings (profile_id, type, role, level, target_company, notes, active)
		VALUES ($1, $2::listing_type, $3, $4, $5, $6, $7)
		RETURNING ` + listingColumns

	out, err := scanListing(r.pool.QueryRow(ctx, query,
		l.ProfileID, l.Type, l.Role, l.Level, l.TargetCompany, l.Notes, l.Active))
	if err != nil {
		return Listing{}, fmt.Errorf("listing: create: %w", err)
	}
	return out, nil
}

// GetByID retrieves a listing by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Listing, error) {
	l, err := scanListing(r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: get by id: %w", err)
	}
	return l, nil
}

// ListMine returns all listings owned by the profile, newest first.
func (r *Repository) ListMine(ctx context.Context, profileID string) ([]Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE profile_id = $1
		ORDER BY created_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing: list mine: %w", err)
	}
	defer rows.Close()
	return collectListings(rows)
}

// ListPublic returns active listings for the explore surface, excluding the
// caller's own rows.
func (r *Repository) ListPublic(ctx context.Context, f PublicFilters) ([]Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE active
	`
	args := []any{}
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d::listing_type", len(args))
	}
	if f.ExcludeProfileID != "" {
		args = append(args, f.ExcludeProfileID)
		query += fmt.Sprintf(" AND profile_id <> $%d", len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing: list public: %w", err)
	}
	defer rows.Close()
	return collectListings(rows)
}

// UpdateOwned applies the patch to a listing only if the profile owns it.
// Ownership failures and missing rows are both reported as ErrNotFound so the
// caller cannot probe for other users' listing ids.
func (r *Repository) UpdateOwned(ctx context.Context, id, profileID string, p Patch) (Listing, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, profileID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Role != nil {
		add("role", *p.Role)
	}
	if p.Level != nil {
		add("level", *p.Level)
	}
	if p.TargetCompany != nil {
		add("target_company", *p.TargetCompany)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	if p.Active != nil {
		add("active", *p.Active)
	}

	query := `
		UPDATE listings
		SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND profile_id = $2
		RETURNING ` + listingColumns

	l, err := scanListing(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: update owned: %w", err)
	}
	return l, nil
}

// DeleteOwned removes a listing only if the profile owns it. The match
// foreign keys restrict the delete, so a listing backing a match cannot be
// removed out from under its escrow.
func (r *Repository) DeleteOwned(ctx context.Context, id, profileID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1 AND profile_id = $2`, id, profileID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrInUse
		}
		return fmt.Errorf("listing: delete owned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectListings(rows pgx.Rows) ([]Listing, error) {
	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listing: scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing: rows: %w", err)
	}
	return out, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	return l, row.Scan(
		&l.ID,
		&l.ProfileID,
		&l.Type,
		&l.Role,
		&l.Level,
		&l.TargetCompany,
		&l.Notes,
		&l.Active,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}
