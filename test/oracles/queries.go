package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run between stress passes. Each query
// selects violating rows; an empty result means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			// A match that still references an escrow must hold it in the
			// escrowed state; settled and returned credits are unreferenced.
			Name: "O1_escrow_reference_state",
			SQL: `SELECT m.id, c.status FROM matches m
                  JOIN credits c ON c.id = m.escrow_credit_id
                  WHERE c.status <> 'escrowed'`,
		},
		{
			// One credit backs at most one match.
			Name: "O2_escrow_single_use",
			SQL: `SELECT escrow_credit_id, COUNT(*) FROM matches
                  WHERE escrow_credit_id IS NOT NULL
                  GROUP BY escrow_credit_id HAVING COUNT(*) > 1`,
		},
		{
			// No credit stays escrowed without a live match holding it.
			Name: "O3_no_orphaned_escrow",
			SQL: `SELECT c.id FROM credits c
                  WHERE c.status = 'escrowed'
                    AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.escrow_credit_id = c.id)`,
		},
		{
			// Every spend mints exactly one earned credit for the giver, so
			// the counts track each other whatever later happens to either.
			Name: "O4_spend_earn_conservation",
			SQL: `SELECT spent, earned FROM
                    (SELECT COUNT(*) AS spent FROM credits WHERE status = 'spent') s,
                    (SELECT COUNT(*) AS earned FROM credits WHERE source = 'earned') e
                  WHERE spent <> earned`,
		},
		{
			// Expiry returns the escrow before flipping the status.
			Name: "O5_expired_escrow_released",
			SQL:  `SELECT id FROM matches WHERE status = 'expired' AND escrow_credit_id IS NOT NULL`,
		},
		{
			// At most one approved proof per match.
			Name: "O6_single_approved_proof",
			SQL: `SELECT match_id, COUNT(*) FROM proofs
                  WHERE status = 'approved'
                  GROUP BY match_id HAVING COUNT(*) > 1`,
		},
		{
			// An approved proof belongs to a match that kept its accepted
			// status; an expired match must never carry an approval.
			Name: "O7_approved_match_not_expired",
			SQL: `SELECT p.id, m.status FROM proofs p
                  JOIN matches m ON m.id = p.match_id
                  WHERE p.status = 'approved' AND m.status <> 'accepted'`,
		},
		{
			// Reputation counters stay coherent.
			Name: "O8_reputation_bounds",
			SQL: `SELECT id, total_matches, successful_matches, completion_rate FROM profiles
                  WHERE completion_rate < 0 OR completion_rate > 100
                     OR successful_matches > total_matches
                     OR total_matches < 0 OR successful_matches < 0`,
		},
		{
			// Proofs only ever attach to matches that were accepted, so a
			// pending match with a proof means the gate was bypassed.
			Name: "O9_no_proofs_on_pending",
			SQL: `SELECT p.id FROM proofs p
                  JOIN matches m ON m.id = p.match_id
                  WHERE m.status = 'pending'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
