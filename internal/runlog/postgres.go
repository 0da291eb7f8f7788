package runlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/db"
	"github.com/sells-group/cepsync/internal/model"
)

// PostgresStore implements Store on a shared Postgres pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres and returns a store owning the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cepsync_runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB NOT NULL,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_cepsync_runs_status ON cepsync_runs(status);
CREATE INDEX IF NOT EXISTS idx_cepsync_runs_started_at ON cepsync_runs(started_at DESC);
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

func (s *PostgresStore) Start(ctx context.Context, sum *model.RunSummary) error {
	data, err := encodeSummary(sum)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cepsync_runs (id, mode, status, summary, started_at) VALUES ($1, $2, $3, $4, $5)`,
		sum.RunID, string(sum.Mode), string(model.RunStatusRunning), data, sum.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", sum.RunID)
}

func (s *PostgresStore) Finish(ctx context.Context, sum *model.RunSummary) error {
	data, err := encodeSummary(sum)
	if err != nil {
		return err
	}
	var errMsg *string
	if sum.Error != "" {
		errMsg = &sum.Error
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE cepsync_runs SET status = $1, summary = $2, error = $3, finished_at = now() WHERE id = $4`,
		string(sum.Status), data, errMsg, sum.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", sum.RunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", sum.RunID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, runID string) (*model.RunSummary, error) {
	var status string
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT status, summary FROM cepsync_runs WHERE id = $1`, runID,
	).Scan(&status, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return decodeSummary(data, status)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]model.RunSummary, error) {
	query := `SELECT status, summary FROM cepsync_runs WHERE true`
	args := []any{}
	argIdx := 1

	if f.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Mode != "" {
		query += fmt.Sprintf(` AND mode = $%d`, argIdx)
		args = append(args, string(f.Mode))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOf(f))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var status string
		var data []byte
		if err := rows.Scan(&status, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		sum, err := decodeSummary(data, status)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *sum)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
