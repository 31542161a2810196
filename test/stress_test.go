package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"referloop/credit"
	"referloop/listing"
	"referloop/match"
	"referloop/profile"
	"referloop/proof"
	"referloop/sweeper"
	"referloop/test/actors"
	"referloop/test/chaos"
	"referloop/test/infra"
	"referloop/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 4, "asker/giver pairs per participant")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestMatchLifecycleConcurrency(t *testing.T) {
	flag.Parse()

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	deps, participants := buildStack(t, ctx, pool)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := range participants {
		self := participants[i]
		others := make([]actors.Participant, 0, len(participants)-1)
		for j, p := range participants {
			if j != i {
				others = append(others, p)
			}
		}
		for k := 0; k < *flConcurrency; k++ {
			g.Go(func() error { return actors.Asker(ctx2, deps, self, others, stop) })
		}
		g.Go(func() error { return actors.Giver(ctx2, deps, self, stop) })
		g.Go(func() error { return actors.ProofWorker(ctx2, deps, self, stop) })
		g.Go(func() error { return actors.Releaser(ctx2, deps, self, stop) })
	}
	g.Go(func() error { return actors.Backdater(ctx2, deps, stop) })
	g.Go(func() error { return actors.SweepLoop(ctx2, deps, stop) })
	g.Go(func() error { return actors.SweepLoop(ctx2, deps, stop) })
	g.Go(func() error { return actors.Granter(ctx2, deps, participants, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, "", stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s", name, row)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}

	// One quiescent pass after the actors stop.
	if name, row, err := oracles.Run(context.Background(), pool); err != nil {
		t.Fatalf("final oracle error: %v", err)
	} else if name != "" {
		dumpRecent(t, context.Background(), pool)
		t.Fatalf("Oracle %s failed at rest. First row: %s", name, row)
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

// buildStack wires the production services over the stress pool and seeds a
// small marketplace: a handful of profiles, each with ask and give listings
// and a starting credit balance.
func buildStack(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (actors.Deps, []actors.Participant) {
	t.Helper()

	profileRepo := profile.NewRepository(pool)
	ledger := credit.NewLedger(pool)
	listingRepo := listing.NewRepository(pool)
	matchRepo := match.NewRepository(pool)
	matchSvc := match.NewService(pool, matchRepo, ledger, profileRepo, listingRepo)
	proofSvc := proof.NewService(pool, proof.NewRepository(pool), matchRepo, matchSvc)
	sweep := sweeper.New(matchSvc, nil)

	const nParticipants = 4
	participants := make([]actors.Participant, 0, nParticipants)
	for i := 0; i < nParticipants; i++ {
		var profileID string
		email := fmt.Sprintf("stress-%d-%d@example.com", i, rand.Int63())
		if err := pool.QueryRow(ctx, `INSERT INTO profiles (email, name) VALUES ($1, $2) RETURNING id`,
			email, fmt.Sprintf("Participant %d", i)).Scan(&profileID); err != nil {
			t.Fatalf("seed profile %d: %v", i, err)
		}

		p := actors.Participant{ProfileID: profileID}
		role := "Software Engineer"
		for j := 0; j < 3; j++ {
			ask, err := listingRepo.Create(ctx, listing.Listing{ProfileID: profileID, Type: listing.TypeAsk, Role: &role, Active: true})
			if err != nil {
				t.Fatalf("seed ask listing: %v", err)
			}
			give, err := listingRepo.Create(ctx, listing.Listing{ProfileID: profileID, Type: listing.TypeGive, Role: &role, Active: true})
			if err != nil {
				t.Fatalf("seed give listing: %v", err)
			}
			p.AskIDs = append(p.AskIDs, ask.ID)
			p.GiveIDs = append(p.GiveIDs, give.ID)
		}

		for j := 0; j < 5; j++ {
			if _, err := ledger.Grant(ctx, profileID, credit.SourceGrant); err != nil {
				t.Fatalf("seed credit: %v", err)
			}
		}
		participants = append(participants, p)
	}

	return actors.Deps{
		Pool:    pool,
		Ledger:  ledger,
		Matches: matchSvc,
		Proofs:  proofSvc,
		Sweep:   sweep,
	}, participants
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"matches", `SELECT id, status, escrow_credit_id, acknowledge_by, submit_by FROM matches ORDER BY updated_at DESC LIMIT 50`},
		{"credits", `SELECT id, profile_id, status, source FROM credits ORDER BY created_at DESC LIMIT 50`},
		{"proofs", `SELECT id, match_id, status, reviewed_at FROM proofs ORDER BY created_at DESC LIMIT 50`},
		{"profiles", `SELECT id, total_matches, successful_matches, completion_rate FROM profiles LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
