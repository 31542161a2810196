package listing

import (
	"context"
	"errors"
)

// ErrInvalidType signals a listing type outside ask/give.
var ErrInvalidType = errors.New("listing: type must be ask or give")

// Store abstracts repository operations for the service.
type Store interface {
	Create(ctx context.Context, l Listing) (Listing, error)
	GetByID(ctx context.Context, id string) (Listing, error)
	ListMine(ctx context.Context, profileID string) ([]Listing, error)
	ListPublic(ctx context.Context, f PublicFilters) ([]Listing, error)
	UpdateOwned(ctx context.Context, id, profileID string, p Patch) (Listing, error)
	DeleteOwned(ctx context.Context, id, profileID string) error
}

// Service exposes business-level listing operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new listing. The type is fixed for the life
// of the listing; patches cannot change it.
func (s *Service) Create(ctx context.Context, l Listing) (Listing, error) {
	if l.Type != TypeAsk && l.Type != TypeGive {
		return Listing{}, ErrInvalidType
	}
	l.Active = true
	return s.repo.Create(ctx, l)
}

// Mine returns all listings owned by the profile.
func (s *Service) Mine(ctx context.Context, profileID string) ([]Listing, error) {
	return s.repo.ListMine(ctx, profileID)
}

// Explore returns active listings from other profiles, optionally filtered by
// type.
func (s *Service) Explore(ctx context.Context, f PublicFilters) ([]Listing, error) {
	if f.Type != "" && f.Type != TypeAsk && f.Type != TypeGive {
		return nil, ErrInvalidType
	}
	return s.repo.ListPublic(ctx, f)
}

// Update patches a listing the profile owns.
func (s *Service) Update(ctx context.Context, id, profileID string, p Patch) (Listing, error) {
	return s.repo.UpdateOwned(ctx, id, profileID, p)
}

// Delete removes a listing the profile owns.
func (s *Service) Delete(ctx context.Context, id, profileID string) error {
	return s.repo.DeleteOwned(ctx, id, profileID)
}
