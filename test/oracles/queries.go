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

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_vote_per_voter",
			SQL: `SELECT dispute_id, voter, COUNT(*) FROM votes
                  GROUP BY dispute_id, voter HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_no_party_votes",
			SQL: `SELECT v.id, v.voter FROM votes v
                  JOIN disputes d ON d.id = v.dispute_id
                  JOIN contracts c ON c.id = d.contract_id
                  WHERE v.voter IN (c.landlord_address, c.tenant_address)`,
		},
		{
			Name: "O3_event_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT contract_id, seq,
                             LAG(seq) OVER (PARTITION BY contract_id ORDER BY seq) AS prev
                      FROM contract_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O4_one_dispute_per_contract",
			SQL: `SELECT contract_id, COUNT(*) FROM disputes
                  GROUP BY contract_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_resolution_consistent",
			SQL: `SELECT d.id FROM disputes d
                  JOIN contracts c ON c.id = d.contract_id
                  WHERE (d.resolved_at IS NOT NULL AND c.status <> 'resolved')
                     OR (d.resolved_at IS NULL AND c.status NOT IN ('dispute'))
                     OR (d.resolved_at IS NULL) <> (d.winner IS NULL)`,
		},
		{
			Name: "O6_fixed_stake",
			SQL:  `SELECT id, voter, stake_amount FROM votes WHERE stake_amount <> 10`,
		},
		{
			Name: "O7_stale_outbox",
			SQL: `SELECT id::text FROM outbox
                  WHERE status NOT IN ('processed','dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O8_resolved_majority",
			SQL: `SELECT d.id, d.winner FROM disputes d
                  WHERE d.winner IS NOT NULL
                    AND NOT (
                      (d.winner = 'tenant' AND
                       (SELECT COUNT(*) FILTER (WHERE choice = 'tenant') > COUNT(*) FILTER (WHERE choice = 'landlord')
                        FROM votes WHERE dispute_id = d.id))
                      OR
                      (d.winner = 'landlord' AND
                       (SELECT COUNT(*) FILTER (WHERE choice = 'landlord') > COUNT(*) FILTER (WHERE choice = 'tenant')
                        FROM votes WHERE dispute_id = d.id))
                    )`,
		},
		{
			Name: "O9_append_only_guard",
			SQL: `SELECT 'missing_append_only_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'votes_append_only')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
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
