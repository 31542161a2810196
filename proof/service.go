package proof

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"referloop/match"
	"referloop/notify"
)

var (
	// ErrForbidden signals the actor may not act on this proof or match.
	ErrForbidden = errors.New("proof: actor not permitted")
	// ErrMatchNotOpen signals the match is not accepting proofs.
	ErrMatchNotOpen = errors.New("proof: match is not accepting proofs")
	// ErrAlreadyReviewed signals the proof has a verdict already.
	ErrAlreadyReviewed = errors.New("proof: already reviewed")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	Insert(ctx context.Context, matchID, submitterID, fileURL string, note *string) (Proof, error)
	GetByID(ctx context.Context, id string) (Proof, error)
	LockByID(ctx context.Context, tx pgx.Tx, id string) (Proof, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id string, status Status, reviewNote *string) (Proof, error)
	ListForMatch(ctx context.Context, matchID string) ([]Proof, error)
}

// MatchDirectory resolves matches for authorization checks.
type MatchDirectory interface {
	GetByID(ctx context.Context, id string) (match.Match, error)
}

// MatchSettler settles an accepted match inside the caller's transaction.
type MatchSettler interface {
	SettleTx(ctx context.Context, tx pgx.Tx, matchID string) (match.Match, error)
}

// Notifier delivers best-effort notifications after commit.
type Notifier interface {
	Send(ctx context.Context, recipientID string, kind notify.Kind, matchID string)
}

// Service runs the proof workflow: the giver submits evidence, the asker
// reviews it, and an approval settles the match in the same transaction.
type Service struct {
	pool     TxBeginner
	repo     Store
	matches  MatchDirectory
	settler  MatchSettler
	notifier Notifier
}

func NewService(pool TxBeginner, repo Store, matches MatchDirectory, settler MatchSettler) *Service {
	return &Service{
		pool:    pool,
		repo:    repo,
		matches: matches,
		settler: settler,
	}
}

// WithNotifier attaches a post-commit notifier.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Submit records the giver's evidence on an accepted match.
func (s *Service) Submit(ctx context.Context, matchID, actorID, fileURL string, note *string) (Proof, error) {
	if fileURL == "" {
		return Proof{}, fmt.Errorf("proof: missing file url")
	}
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return Proof{}, err
	}
	if m.GiverID != actorID {
		return Proof{}, ErrForbidden
	}
	if m.Status != match.StatusAccepted {
		return Proof{}, ErrMatchNotOpen
	}

	p, err := s.repo.Insert(ctx, matchID, actorID, fileURL, note)
	if err != nil {
		return Proof{}, err
	}

	if s.notifier != nil {
		s.notifier.Send(ctx, m.AskerID, notify.KindProofSubmitted, m.ID)
	}
	return p, nil
}

// Review records the asker's verdict. Approving spends the escrow and pays
// the giver atomically with the verdict; a match already settled or expired
// rejects the approval, so at most one proof per match is ever approved.
func (s *Service) Review(ctx context.Context, proofID, actorID string, approve bool, reviewNote *string) (Proof, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Proof{}, fmt.Errorf("proof: begin review tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.LockByID(ctx, tx, proofID)
	if err != nil {
		return Proof{}, err
	}
	m, err := s.matches.GetByID(ctx, p.MatchID)
	if err != nil {
		return Proof{}, err
	}
	if m.AskerID != actorID {
		return Proof{}, ErrForbidden
	}
	if p.Status != StatusSubmitted {
		return Proof{}, ErrAlreadyReviewed
	}

	verdict := StatusRejected
	if approve {
		verdict = StatusApproved
	}
	reviewed, err := s.repo.SetStatusTx(ctx, tx, proofID, verdict, reviewNote)
	if err != nil {
		return Proof{}, err
	}
	if approve {
		if _, err := s.settler.SettleTx(ctx, tx, p.MatchID); err != nil {
			return Proof{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Proof{}, fmt.Errorf("proof: commit review tx: %w", err)
	}

	if s.notifier != nil {
		if approve {
			s.notifier.Send(ctx, m.GiverID, notify.KindProofApproved, m.ID)
			s.notifier.Send(ctx, m.GiverID, notify.KindCreditEarned, m.ID)
		} else {
			s.notifier.Send(ctx, m.GiverID, notify.KindProofRejected, m.ID)
		}
	}
	return reviewed, nil
}

// ListForMatch returns the match's proofs to one of its participants.
func (s *Service) ListForMatch(ctx context.Context, matchID, actorID string) ([]Proof, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.AskerID != actorID && m.GiverID != actorID {
		return nil, ErrForbidden
	}
	return s.repo.ListForMatch(ctx, matchID)
}
