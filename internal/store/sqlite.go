package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS classifications (
	id          TEXT PRIMARY KEY,
	row_index   INTEGER NOT NULL,
	ref         TEXT NOT NULL DEFAULT '',
	label       INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	probability REAL,
	features    TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_classifications_ref ON classifications(ref);
CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveClassifications(ctx context.Context, results []model.Classification) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(classificationColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO classifications (`+strings.Join(classificationColumns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range results {
		features, err := encodeFeatures(c.Features)
		if err != nil {
			return 0, err
		}
		var prob sql.NullFloat64
		if c.Probability != nil {
			prob = sql.NullFloat64{Float64: *c.Probability, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Row, c.Ref, c.Label, c.Confidence, string(c.Source), prob, features, c.Error, c.CreatedAt.UTC(),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert classification %s", c.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return len(results), nil
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, filter Filter) ([]model.Classification, error) {
	query := `SELECT ` + strings.Join(classificationColumns, ", ") + ` FROM classifications WHERE 1=1`
	var args []any

	if filter.Label != nil {
		query += ` AND label = ?`
		args = append(args, *filter.Label)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.Ref != "" {
		query += ` AND ref = ?`
		args = append(args, filter.Ref)
	}
	if filter.Failed != nil {
		if *filter.Failed {
			query += ` AND error <> ''`
		} else {
			query += ` AND error = ''`
		}
	}
	query += ` ORDER BY created_at DESC, row_index ASC LIMIT ? OFFSET ?`
	args = append(args, filter.limit(), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list classifications")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		var source, features string
		var prob sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.Row, &c.Ref, &c.Label, &c.Confidence, &source, &prob, &features, &c.Error, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classification")
		}
		c.Source = model.DecisionSource(source)
		if prob.Valid {
			p := prob.Float64
			c.Probability = &p
		}
		if c.Features, err = decodeFeatures(features); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list classifications iterate")
}
