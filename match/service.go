package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"referloop/credit"
	"referloop/listing"
	"referloop/notify"
)

var (
	ErrListingNotFound   = errors.New("match: listing not found")
	ErrForbidden         = errors.New("match: actor not a participant")
	ErrSelfMatch         = errors.New("match: listings share an owner")
	ErrTypeMismatch      = errors.New("match: listings are not an ask/give pair")
	ErrInvalidTransition = errors.New("match: invalid status transition")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	PairExists(ctx context.Context, tx pgx.Tx, askListingID, giveListingID string) (bool, error)
	InsertTx(ctx context.Context, tx pgx.Tx, params InsertParams) (Match, error)
	GetByID(ctx context.Context, id string) (Match, error)
	LockByID(ctx context.Context, tx pgx.Tx, id string) (Match, error)
	MarkAcceptedTx(ctx context.Context, tx pgx.Tx, id string, submitBy time.Time) (Match, error)
	ClearEscrowTx(ctx context.Context, tx pgx.Tx, id string) (Match, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status) (Match, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id string) error
	ListForProfile(ctx context.Context, profileID string) ([]Match, error)
	ListExpirable(ctx context.Context, now time.Time) ([]string, error)
	ApprovedProofExistsTx(ctx context.Context, tx pgx.Tx, matchID string) (bool, error)
}

// CreditLedger covers the escrow operations a match transition needs.
type CreditLedger interface {
	EscrowOneAvailable(ctx context.Context, tx pgx.Tx, profileID string) (string, error)
	Spend(ctx context.Context, tx pgx.Tx, creditID string) error
	Return(ctx context.Context, tx pgx.Tx, creditID string) (string, error)
	GrantTx(ctx context.Context, tx pgx.Tx, profileID string, source credit.Source) (credit.Credit, error)
}

// Reputation records match outcomes on the giver's profile counters.
type Reputation interface {
	RecordAcceptedMatch(ctx context.Context, tx pgx.Tx, id string) error
	RecordSuccessfulMatch(ctx context.Context, tx pgx.Tx, id string) error
}

// ListingSource resolves the listings a match is built from.
type ListingSource interface {
	GetByID(ctx context.Context, id string) (listing.Listing, error)
}

// Notifier delivers best-effort notifications after commit. Implementations
// must not fail the calling operation.
type Notifier interface {
	Send(ctx context.Context, recipientID string, kind notify.Kind, matchID string)
}

// Service drives the match lifecycle. Every transition locks the match row
// and moves the escrowed credit in the same transaction, so a transition and
// its ledger side effect commit or roll back together.
type Service struct {
	pool     TxBeginner
	repo     Store
	ledger   CreditLedger
	profiles Reputation
	listings ListingSource
	notifier Notifier
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Store, ledger CreditLedger, profiles Reputation, listings ListingSource) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		ledger:   ledger,
		profiles: profiles,
		listings: listings,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithNotifier attaches a post-commit notifier.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Create opens a match between an ask listing and a give listing. The actor
// supplies their own listing plus the one they want matched against, and the
// pair is oriented by type, so either side may initiate. One of the asker's
// available credits is escrowed in the same transaction. Precondition
// failures surface in a fixed order so the caller sees the same error
// regardless of incidental state.
func (s *Service) Create(ctx context.Context, actorID, myListingID, targetListingID string) (Match, error) {
	mine, err := s.getListing(ctx, myListingID)
	if err != nil {
		return Match{}, err
	}
	target, err := s.getListing(ctx, targetListingID)
	if err != nil {
		return Match{}, err
	}
	if mine.ProfileID != actorID {
		return Match{}, ErrForbidden
	}
	if mine.ProfileID == target.ProfileID {
		return Match{}, ErrSelfMatch
	}
	if mine.Type == target.Type {
		return Match{}, ErrTypeMismatch
	}
	ask, give := mine, target
	if mine.Type == listing.TypeGive {
		ask, give = target, mine
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("match: begin create tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Checked before the escrow so a duplicate pair reports as duplicate
	// even when the asker also has no credit. The unique constraint catches
	// creates racing past this check.
	exists, err := s.repo.PairExists(ctx, tx, ask.ID, give.ID)
	if err != nil {
		return Match{}, err
	}
	if exists {
		return Match{}, ErrDuplicate
	}

	// The escrow always comes from the asker, who may not be the actor when
	// the giver initiated the pair.
	escrowID, err := s.ledger.EscrowOneAvailable(ctx, tx, ask.ProfileID)
	if err != nil {
		return Match{}, err
	}

	now := s.now()
	m, err := s.repo.InsertTx(ctx, tx, InsertParams{
		AskListingID:   ask.ID,
		GiveListingID:  give.ID,
		AskerID:        ask.ProfileID,
		GiverID:        give.ProfileID,
		EscrowCreditID: escrowID,
		AcknowledgeBy:  now.Add(AcknowledgeWindow),
		SubmitBy:       now.Add(SubmitWindowInitial),
	})
	if err != nil {
		return Match{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Match{}, fmt.Errorf("match: commit create tx: %w", err)
	}

	if s.notifier != nil {
		recipient := m.GiverID
		if actorID == m.GiverID {
			recipient = m.AskerID
		}
		s.notifier.Send(ctx, recipient, notify.KindMatchRequest, m.ID)
	}
	return m, nil
}

// Accept moves a pending match to accepted and tightens the submit deadline
// to seven days from acceptance. Only the giver may accept. A match already
// out of pending is returned as-is, so the loser of a racing transition sees
// an idempotent success.
func (s *Service) Accept(ctx context.Context, matchID, actorID string) (Match, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("match: begin accept tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := s.repo.LockByID(ctx, tx, matchID)
	if err != nil {
		return Match{}, err
	}
	if m.GiverID != actorID {
		return Match{}, ErrForbidden
	}
	if m.Status != StatusPending {
		return m, nil
	}

	accepted, err := s.repo.MarkAcceptedTx(ctx, tx, matchID, s.now().Add(SubmitWindowAccepted))
	if err != nil {
		return Match{}, err
	}
	if err := s.profiles.RecordAcceptedMatch(ctx, tx, m.GiverID); err != nil {
		return Match{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Match{}, fmt.Errorf("match: commit accept tx: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Send(ctx, accepted.AskerID, notify.KindMatchAccepted, accepted.ID)
	}
	return accepted, nil
}

// Decline removes a pending match and returns the escrowed credit to the
// asker. Either participant may decline. The record is deleted outright; a
// declined match carries no further value.
func (s *Service) Decline(ctx context.Context, matchID, actorID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("match: begin decline tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := s.repo.LockByID(ctx, tx, matchID)
	if err != nil {
		return err
	}
	if m.AskerID != actorID && m.GiverID != actorID {
		return ErrForbidden
	}
	if m.Status != StatusPending {
		return fmt.Errorf("%w: decline from %s", ErrInvalidTransition, m.Status)
	}

	if m.EscrowCreditID != nil {
		if _, err := s.ledger.Return(ctx, tx, *m.EscrowCreditID); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteTx(ctx, tx, matchID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("match: commit decline tx: %w", err)
	}
	return nil
}

// Release is the manual override that spends the escrow and pays the giver
// without a proof review. The match keeps status accepted; only the asker
// may release, and only once per escrow.
func (s *Service) Release(ctx context.Context, matchID, actorID string) (Match, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("match: begin release tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := s.repo.LockByID(ctx, tx, matchID)
	if err != nil {
		return Match{}, err
	}
	if m.AskerID != actorID {
		return Match{}, ErrForbidden
	}

	released, err := s.spendEscrowLocked(ctx, tx, m)
	if err != nil {
		return Match{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Match{}, fmt.Errorf("match: commit release tx: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Send(ctx, released.GiverID, notify.KindCreditEarned, released.ID)
	}
	return released, nil
}

// SettleTx applies a proof approval's ledger and reputation effects inside
// the caller's transaction: the escrow is spent, the giver earns a credit,
// and the giver's success counter moves. The match keeps status accepted. A
// match no longer accepted, or whose escrow was already resolved by an
// earlier settlement or release, rejects the settlement, so at most one
// approval ever settles a match.
func (s *Service) SettleTx(ctx context.Context, tx pgx.Tx, matchID string) (Match, error) {
	m, err := s.repo.LockByID(ctx, tx, matchID)
	if err != nil {
		return Match{}, err
	}
	settled, err := s.spendEscrowLocked(ctx, tx, m)
	if err != nil {
		return Match{}, err
	}
	if err := s.profiles.RecordSuccessfulMatch(ctx, tx, settled.GiverID); err != nil {
		return Match{}, err
	}
	return settled, nil
}

// spendEscrowLocked spends the escrow and mints the giver's earned credit.
// The caller holds the row lock. An accepted match whose escrow already
// resolved cannot be spent twice; the cleared reference guards it.
func (s *Service) spendEscrowLocked(ctx context.Context, tx pgx.Tx, m Match) (Match, error) {
	if m.Status != StatusAccepted {
		return Match{}, fmt.Errorf("%w: settle from %s", ErrInvalidTransition, m.Status)
	}
	if m.EscrowCreditID == nil {
		return Match{}, fmt.Errorf("%w: escrow already resolved", ErrInvalidTransition)
	}
	if err := s.ledger.Spend(ctx, tx, *m.EscrowCreditID); err != nil {
		return Match{}, err
	}
	if _, err := s.ledger.GrantTx(ctx, tx, m.GiverID, credit.SourceEarned); err != nil {
		return Match{}, err
	}
	return s.repo.ClearEscrowTx(ctx, tx, m.ID)
}

// ExpireOne expires a single overdue match: the escrow, if still held,
// returns to the asker and the status becomes expired. The deadline is
// re-verified under lock, so a match that was accepted or resolved after
// candidate selection is left alone. Reports whether the match was expired.
func (s *Service) ExpireOne(ctx context.Context, matchID string, now time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("match: begin expire tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := s.repo.LockByID(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	due, err := s.expirableLocked(ctx, tx, m, now)
	if err != nil || !due {
		return false, err
	}

	if m.EscrowCreditID != nil {
		if _, err := s.ledger.Return(ctx, tx, *m.EscrowCreditID); err != nil {
			return false, err
		}
		if _, err := s.repo.ClearEscrowTx(ctx, tx, matchID); err != nil {
			return false, err
		}
	}
	if _, err := s.repo.SetStatusTx(ctx, tx, matchID, StatusExpired); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("match: commit expire tx: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Send(ctx, m.AskerID, notify.KindMatchExpired, m.ID)
		s.notifier.Send(ctx, m.GiverID, notify.KindMatchExpired, m.ID)
	}
	return true, nil
}

// ListExpirable returns the ids of matches currently past their deadline.
func (s *Service) ListExpirable(ctx context.Context, now time.Time) ([]string, error) {
	return s.repo.ListExpirable(ctx, now)
}

// ListForProfile returns the matches the profile participates in.
func (s *Service) ListForProfile(ctx context.Context, profileID string) ([]Match, error) {
	return s.repo.ListForProfile(ctx, profileID)
}

// GetByID retrieves a match without an authorization check. Callers that
// serve external requests use GetForParticipant instead.
func (s *Service) GetByID(ctx context.Context, matchID string) (Match, error) {
	return s.repo.GetByID(ctx, matchID)
}

// GetForParticipant returns a match only to its asker or giver. Outsiders
// get ErrNotFound rather than ErrForbidden so match ids cannot be probed.
func (s *Service) GetForParticipant(ctx context.Context, matchID, actorID string) (Match, error) {
	m, err := s.repo.GetByID(ctx, matchID)
	if err != nil {
		return Match{}, err
	}
	if m.AskerID != actorID && m.GiverID != actorID {
		return Match{}, ErrNotFound
	}
	return m, nil
}

func (s *Service) expirableLocked(ctx context.Context, tx pgx.Tx, m Match, now time.Time) (bool, error) {
	switch m.Status {
	case StatusPending:
		return m.AcknowledgeBy.Before(now), nil
	case StatusAccepted:
		if !m.SubmitBy.Before(now) {
			return false, nil
		}
		approved, err := s.repo.ApprovedProofExistsTx(ctx, tx, m.ID)
		if err != nil {
			return false, err
		}
		return !approved, nil
	default:
		return false, nil
	}
}

func (s *Service) getListing(ctx context.Context, id string) (listing.Listing, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			return listing.Listing{}, ErrListingNotFound
		}
		return listing.Listing{}, err
	}
	return l, nil
}
