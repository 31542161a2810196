package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"referloop/credit"
	"referloop/match"
	"referloop/proof"
	"referloop/sweeper"
)

// Deps bundles the production services the actors drive. All actors go through
// the service layer, never raw SQL, so the stress run exercises the same locks
// and transactions the API does.
type Deps struct {
	Pool    *pgxpool.Pool
	Ledger  *credit.Ledger
	Matches *match.Service
	Proofs  *proof.Service
	Sweep   *sweeper.Sweeper
}

// Participant is one seeded profile with its listings.
type Participant struct {
	ProfileID string
	AskIDs    []string
	GiveIDs   []string
}

func expectedCreateErr(err error) bool {
	return errors.Is(err, match.ErrDuplicate) ||
		errors.Is(err, credit.ErrInsufficientCredit)
}

func expectedTransitionErr(err error) bool {
	return errors.Is(err, match.ErrNotFound) ||
		errors.Is(err, match.ErrForbidden) ||
		errors.Is(err, match.ErrInvalidTransition) ||
		errors.Is(err, proof.ErrMatchNotOpen) ||
		errors.Is(err, proof.ErrAlreadyReviewed) ||
		errors.Is(err, proof.ErrForbidden)
}

// Asker keeps creating matches from its ask listings against random give
// listings, racing the other askers for its own available credits. Duplicate
// pairs and empty balances are expected under contention.
func Asker(ctx context.Context, d Deps, self Participant, givers []Participant, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		giver := givers[rand.Intn(len(givers))]
		askID := self.AskIDs[rand.Intn(len(self.AskIDs))]
		giveID := giver.GiveIDs[rand.Intn(len(giver.GiveIDs))]
		if _, err := d.Matches.Create(ctx, self.ProfileID, askID, giveID); err != nil && !expectedCreateErr(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Giver accepts or declines its pending matches, racing the sweeper and the
// asker's decline.
func Giver(ctx context.Context, d Deps, self Participant, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		ms, err := d.Matches.ListForProfile(ctx, self.ProfileID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, m := range ms {
			if m.GiverID != self.ProfileID || m.Status != match.StatusPending {
				continue
			}
			if rand.Intn(4) == 0 {
				err = d.Matches.Decline(ctx, m.ID, self.ProfileID)
			} else {
				_, err = d.Matches.Accept(ctx, m.ID, self.ProfileID)
			}
			if err != nil && !expectedTransitionErr(err) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// ProofWorker submits proofs on the giver's accepted matches and has the asker
// review them, approving most. Approval races release and expiry for the same
// escrow.
func ProofWorker(ctx context.Context, d Deps, giver Participant, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		ms, err := d.Matches.ListForProfile(ctx, giver.ProfileID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, m := range ms {
			if m.GiverID != giver.ProfileID || m.Status != match.StatusAccepted {
				continue
			}
			p, err := d.Proofs.Submit(ctx, m.ID, giver.ProfileID, "https://example.com/proof.png", nil)
			if err != nil {
				if expectedTransitionErr(err) {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			approve := rand.Intn(5) != 0
			if _, err := d.Proofs.Review(ctx, p.ID, m.AskerID, approve, nil); err != nil && !expectedTransitionErr(err) && !errors.Is(err, credit.ErrInvalidState) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// Releaser occasionally releases the asker's accepted matches by hand, racing
// the proof approval for the same escrow.
func Releaser(ctx context.Context, d Deps, asker Participant, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		ms, err := d.Matches.ListForProfile(ctx, asker.ProfileID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, m := range ms {
			if m.AskerID != asker.ProfileID || m.Status != match.StatusAccepted || m.EscrowCreditID == nil {
				continue
			}
			if rand.Intn(6) != 0 {
				continue
			}
			if _, err := d.Matches.Release(ctx, m.ID, asker.ProfileID); err != nil && !expectedTransitionErr(err) && !errors.Is(err, credit.ErrInvalidState) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
		time.Sleep(time.Duration(50+rand.Intn(80)) * time.Millisecond)
	}
}

// Backdater randomly drags match deadlines into the past so the sweeper has
// live candidates that race the other actors.
func Backdater(ctx context.Context, d Deps, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := d.Pool.Exec(ctx, `
			UPDATE matches
			SET acknowledge_by = now() - interval '1 minute',
			    submit_by = now() - interval '1 minute'
			WHERE id IN (
				SELECT id FROM matches
				WHERE status IN ('pending', 'accepted')
				ORDER BY random()
				LIMIT 2
			)
		`)
		if err != nil && ctx.Err() == nil {
			return err
		}
		time.Sleep(time.Duration(100+rand.Intn(150)) * time.Millisecond)
	}
}

// SweepLoop runs sweep passes back to back, competing with accepts, approvals
// and a second sweeper for the same overdue rows.
func SweepLoop(ctx context.Context, d Deps, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := d.Sweep.Sweep(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		time.Sleep(time.Duration(80+rand.Intn(120)) * time.Millisecond)
	}
}

// Granter tops profiles up so the askers never starve for long.
func Granter(ctx context.Context, d Deps, participants []Participant, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		p := participants[rand.Intn(len(participants))]
		if _, err := d.Ledger.Grant(ctx, p.ProfileID, credit.SourceGrant); err != nil && ctx.Err() == nil {
			return err
		}
		time.Sleep(time.Duration(200+rand.Intn(200)) * time.Millisecond)
	}
}
