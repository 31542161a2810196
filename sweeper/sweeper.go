package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer is the slice of the match service the sweeper drives.
type Expirer interface {
	ListExpirable(ctx context.Context, now time.Time) ([]string, error)
	ExpireOne(ctx context.Context, matchID string, now time.Time) (bool, error)
}

// Result summarizes one sweep pass. ExpiredIDs carries the matches actually
// forced to expired so callers can report them.
type Result struct {
	Candidates int
	ExpiredIDs []string
	Failed     int
}

// Sweeper expires overdue matches. Each match is handled in its own
// transaction, so one poisoned row cannot block the rest of the pass, and
// concurrent sweeps against the same rows are safe.
type Sweeper struct {
	matches Expirer
	log     *zap.Logger
	now     func() time.Time
}

func New(matches Expirer, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		matches: matches,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep finds matches past their deadline and expires them one at a time.
// Per-match failures are logged and counted, never fatal to the pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := s.now()
	ids, err := s.matches.ListExpirable(ctx, now)
	if err != nil {
		return Result{}, err
	}

	res := Result{Candidates: len(ids), ExpiredIDs: []string{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		expired, err := s.matches.ExpireOne(ctx, id, now)
		if err != nil {
			res.Failed++
			s.log.Warn("expire failed", zap.String("match_id", id), zap.Error(err))
			continue
		}
		if expired {
			res.ExpiredIDs = append(res.ExpiredIDs, id)
		}
	}

	if res.Candidates > 0 {
		s.log.Info("sweep pass",
			zap.Int("candidates", res.Candidates),
			zap.Int("expired", len(res.ExpiredIDs)),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}

// Preview reports which matches a sweep would expire right now, without
// changing anything.
func (s *Sweeper) Preview(ctx context.Context) ([]string, error) {
	return s.matches.ListExpirable(ctx, s.now())
}
