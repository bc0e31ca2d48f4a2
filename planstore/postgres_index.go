package planstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresIndex implements StorageProvider against a relational secondary
// index: a single table keyed by (index_name, key) with a float score
// column for ordering, the alternative persistence tier
// orchestration/execution_store.go names alongside its Redis option. The
// schema it expects:
//
//	CREATE TABLE orchestrator_plan_index (
//	    index_name TEXT NOT NULL,
//	    key        TEXT NOT NULL,
//	    value      BYTEA,
//	    score      DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    PRIMARY KEY (index_name, key)
//	);
type PostgresIndex struct {
	pool *pgxpool.Pool
}

// NewPostgresIndex wraps an existing connection pool.
func NewPostgresIndex(pool *pgxpool.Pool) *PostgresIndex {
	return &PostgresIndex{pool: pool}
}

func (p *PostgresIndex) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orchestrator_plan_index (index_name, key, value, score)
		VALUES ('summary', $1, $2, 0)
		ON CONFLICT (index_name, key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return err
}

func (p *PostgresIndex) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `
		SELECT value FROM orchestrator_plan_index WHERE index_name = 'summary' AND key = $1`,
		key).Scan(&value)
	return value, err
}

func (p *PostgresIndex) Del(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM orchestrator_plan_index WHERE index_name = 'summary' AND key = $1`, key)
	return err
}

func (p *PostgresIndex) AddToIndex(ctx context.Context, index, key string, score float64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO orchestrator_plan_index (index_name, key, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (index_name, key) DO UPDATE SET score = EXCLUDED.score`,
		index, key, score)
	return err
}

func (p *PostgresIndex) ListByScoreDesc(ctx context.Context, index string, limit int) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key FROM orchestrator_plan_index WHERE index_name = $1
		ORDER BY score DESC LIMIT $2`, index, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *PostgresIndex) RemoveFromIndex(ctx context.Context, index, key string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM orchestrator_plan_index WHERE index_name = $1 AND key = $2`, index, key)
	return err
}
