package profile

import (
	"context"
	"fmt"
	"strings"
)

// Store abstracts repository operations for the service.
type Store interface {
	UpsertByEmail(ctx context.Context, email string, name, image *string) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	UpdateName(ctx context.Context, id, name string) (Profile, error)
}

// Service exposes business-level profile operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// EnsureByEmail upserts the profile for a verified email. The email is
// trusted as the profile key; the identity provider has already verified it.
func (s *Service) EnsureByEmail(ctx context.Context, email string, name, image *string) (Profile, error) {
	if email == "" {
		return Profile{}, fmt.Errorf("profile: missing email")
	}
	return s.repo.UpsertByEmail(ctx, strings.ToLower(email), name, image)
}

// GetByID returns the profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// Rename updates the display name after trimming; blank names are rejected.
func (s *Service) Rename(ctx context.Context, id, name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, fmt.Errorf("profile: name cannot be empty")
	}
	return s.repo.UpdateName(ctx, id, name)
}
