package notify

import (
	"context"

	"go.uber.org/zap"
)

// Store abstracts repository operations for the service.
type Store interface {
	Insert(ctx context.Context, profileID string, kind Kind, refID *string) (Notification, error)
	ListForProfile(ctx context.Context, profileID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, profileID string) error
	MarkAllRead(ctx context.Context, profileID string) error
}

// Service fans notifications out to profile inboxes. Delivery is best effort;
// a failed insert is logged and never propagated, so a notification outage
// cannot fail a committed match transition.
type Service struct {
	repo Store
	log  *zap.Logger
}

// NewService builds a Service using the provided repository.
func NewService(repo Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

// Send records a notification for the recipient. matchID may be empty for
// events not tied to a match.
func (s *Service) Send(ctx context.Context, recipientID string, kind Kind, matchID string) {
	var ref *string
	if matchID != "" {
		ref = &matchID
	}
	if _, err := s.repo.Insert(ctx, recipientID, kind, ref); err != nil {
		s.log.Warn("notification dropped",
			zap.String("recipient", recipientID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// List returns the recipient's newest notifications.
func (s *Service) List(ctx context.Context, profileID string, limit int) ([]Notification, error) {
	return s.repo.ListForProfile(ctx, profileID, limit)
}

// MarkRead marks one owned notification as read.
func (s *Service) MarkRead(ctx context.Context, id, profileID string) error {
	return s.repo.MarkRead(ctx, id, profileID)
}

// MarkAllRead marks every unread notification for the profile.
func (s *Service) MarkAllRead(ctx context.Context, profileID string) error {
	return s.repo.MarkAllRead(ctx, profileID)
}
