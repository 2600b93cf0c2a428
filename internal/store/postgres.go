package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/db"
	"github.com/sells-group/naf-analyzer/internal/model"
)

// PostgresStore implements Store and ProfileSource using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller keeps ownership.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS classifications (
	id          TEXT PRIMARY KEY,
	row_index   INTEGER NOT NULL,
	ref         TEXT NOT NULL DEFAULT '',
	label       SMALLINT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	probability DOUBLE PRECISION,
	features    JSONB NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_classifications_ref ON classifications(ref);
CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveClassifications(ctx context.Context, results []model.Classification) (int, error) {
	rows := make([][]any, 0, len(results))
	for _, c := range results {
		features, err := encodeFeatures(c.Features)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			c.ID, c.Row, c.Ref, c.Label, c.Confidence, string(c.Source), c.Probability, features, c.Error, c.CreatedAt.UTC(),
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "classifications",
		Columns:      classificationColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save classifications")
	}
	return int(n), nil
}

func (s *PostgresStore) ListClassifications(ctx context.Context, filter Filter) ([]model.Classification, error) {
	query := `SELECT id, row_index, ref, label, confidence, source, probability, features::text, error, created_at FROM classifications WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Label != nil {
		query += fmt.Sprintf(` AND label = $%d`, argIdx)
		args = append(args, *filter.Label)
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	if filter.Ref != "" {
		query += fmt.Sprintf(` AND ref = $%d`, argIdx)
		args = append(args, filter.Ref)
		argIdx++
	}
	if filter.Failed != nil {
		if *filter.Failed {
			query += ` AND error <> ''`
		} else {
			query += ` AND error = ''`
		}
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, row_index ASC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, filter.limit(), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list classifications")
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		var source, features string
		var label int16
		if err := rows.Scan(&c.ID, &c.Row, &c.Ref, &label, &c.Confidence, &source, &c.Probability, &features, &c.Error, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan classification")
		}
		c.Label = int(label)
		c.Source = model.DecisionSource(source)
		if c.Features, err = decodeFeatures(features); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list classifications iterate")
}
