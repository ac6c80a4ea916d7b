package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const runSchema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	uuid        TEXT PRIMARY KEY,
	keyword     TEXT        NOT NULL,
	country     TEXT        NOT NULL,
	username    TEXT        NOT NULL DEFAULT '',
	steps       TEXT[]      NOT NULL DEFAULT '{}',
	status      TEXT        NOT NULL,
	num_results INTEGER     NOT NULL DEFAULT 0,
	num_kept    INTEGER     NOT NULL DEFAULT 0,
	usage       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	output_dir  TEXT        NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_country ON pipeline_runs (country, started_at DESC);
`

// RunAdapter implements out.RunRepository using PostgreSQL.
type RunAdapter struct {
	db *sqlx.DB
}

var _ out.RunRepository = (*RunAdapter)(nil)

func NewRunAdapter(db *sqlx.DB) *RunAdapter {
	return &RunAdapter{db: db}
}

func (a *RunAdapter) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, runSchema); err != nil {
		return fmt.Errorf("migrate pipeline_runs: %w", err)
	}
	return nil
}

type runRow struct {
	UUID       string         `db:"uuid"`
	Keyword    string         `db:"keyword"`
	Country    string         `db:"country"`
	User       string         `db:"username"`
	Steps      pq.StringArray `db:"steps"`
	Status     string         `db:"status"`
	NumResults int            `db:"num_results"`
	NumKept    int            `db:"num_kept"`
	Usage      []byte         `db:"usage"`
	OutputDir  string         `db:"output_dir"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt sql.NullTime   `db:"finished_at"`
}

func (r *runRow) toDomain() (*domain.RunRecord, error) {
	rec := &domain.RunRecord{
		UUID:       r.UUID,
		Keyword:    r.Keyword,
		Country:    r.Country,
		User:       r.User,
		Steps:      r.Steps,
		Status:     r.Status,
		NumResults: r.NumResults,
		NumKept:    r.NumKept,
		OutputDir:  r.OutputDir,
		StartedAt:  r.StartedAt,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		rec.FinishedAt = &t
	}
	if len(r.Usage) > 0 {
		if err := json.Unmarshal(r.Usage, &rec.Usage); err != nil {
			return nil, fmt.Errorf("decode usage of run %s: %w", r.UUID, err)
		}
	}
	return rec, nil
}

// Record inserts the run or updates its progress.
func (a *RunAdapter) Record(ctx context.Context, run *domain.RunRecord) error {
	const query = `
		INSERT INTO pipeline_runs (
			uuid, keyword, country, username, steps, status,
			num_results, num_kept, usage, output_dir, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12
		)
		ON CONFLICT (uuid) DO UPDATE SET
			status = EXCLUDED.status,
			num_kept = EXCLUDED.num_kept,
			usage = EXCLUDED.usage,
			finished_at = EXCLUDED.finished_at
	`

	usage := run.Usage
	if usage == nil {
		usage = map[string]int{}
	}
	usageJSON, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	var finished sql.NullTime
	if run.FinishedAt != nil {
		finished = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	_, err = a.db.ExecContext(ctx, query,
		run.UUID,
		run.Keyword,
		strings.ToUpper(run.Country),
		run.User,
		pq.Array(run.Steps),
		run.Status,
		run.NumResults,
		run.NumKept,
		string(usageJSON),
		run.OutputDir,
		run.StartedAt,
		finished,
	)
	if err != nil {
		return apperr.StorageError("record run", err)
	}
	return nil
}

const runColumns = `uuid, keyword, country, username, steps, status, num_results,
	num_kept, usage, output_dir, started_at, finished_at`

func (a *RunAdapter) Get(ctx context.Context, uuid string) (*domain.RunRecord, error) {
	var row runRow
	err := a.db.GetContext(ctx, &row, `SELECT `+runColumns+` FROM pipeline_runs WHERE uuid = $1`, uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("run")
	}
	if err != nil {
		return nil, apperr.StorageError("get run", err)
	}
	return row.toDomain()
}

// ListRecent returns the latest runs, for one country or all when country is empty.
func (a *RunAdapter) ListRecent(ctx context.Context, country string, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []runRow
	var err error
	if country == "" {
		err = a.db.SelectContext(ctx, &rows,
			`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	} else {
		err = a.db.SelectContext(ctx, &rows,
			`SELECT `+runColumns+` FROM pipeline_runs WHERE country = $1 ORDER BY started_at DESC LIMIT $2`,
			strings.ToUpper(country), limit)
	}
	if err != nil {
		return nil, apperr.StorageError("list runs", err)
	}

	runs := make([]*domain.RunRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, nil
}
