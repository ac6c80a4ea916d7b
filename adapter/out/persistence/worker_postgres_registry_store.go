package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresRegistrySchema = `
CREATE TABLE IF NOT EXISTS known_domains (
	country    TEXT        NOT NULL,
	domain     TEXT        NOT NULL,
	verdict    SMALLINT    NOT NULL,
	entry      JSONB       NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (country, domain)
);
CREATE INDEX IF NOT EXISTS idx_known_domains_verdict ON known_domains (country, verdict);
`

// PostgresRegistryStore keeps the registries in a shared Postgres table, so
// several pipeline hosts can work from the same registry.
type PostgresRegistryStore struct {
	pool *pgxpool.Pool
}

var _ out.RegistryStore = (*PostgresRegistryStore)(nil)

func NewPostgresRegistryStore(pool *pgxpool.Pool) *PostgresRegistryStore {
	return &PostgresRegistryStore{pool: pool}
}

// Migrate creates the table when it does not exist yet.
func (s *PostgresRegistryStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresRegistrySchema); err != nil {
		return fmt.Errorf("migrate known_domains: %w", err)
	}
	return nil
}

func (s *PostgresRegistryStore) Load(ctx context.Context, country string) (domain.Buckets, error) {
	const query = `SELECT domain, verdict, entry::text FROM known_domains WHERE country = $1`

	rows, err := s.pool.Query(ctx, query, strings.ToLower(country))
	if err != nil {
		return domain.Buckets{}, fmt.Errorf("load registry: %w", err)
	}
	collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domainRow, error) {
		var r domainRow
		err := row.Scan(&r.Domain, &r.Verdict, &r.Entry)
		return r, err
	})
	if err != nil {
		return domain.Buckets{}, fmt.Errorf("load registry: %w", err)
	}
	return rowsToBuckets(collected)
}

// Save replaces the stored registry of country inside one transaction.
func (s *PostgresRegistryStore) Save(ctx context.Context, country string, buckets domain.Buckets) error {
	country = strings.ToLower(country)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM known_domains WHERE country = $1`, country)

	var encodeErr error
	buckets.Each(func(d string, v domain.Verdict, e domain.RegistryEntry) {
		entry, err := json.Marshal(e)
		if err != nil && encodeErr == nil {
			encodeErr = fmt.Errorf("encode entry for %s: %w", d, err)
			return
		}
		batch.Queue(
			`INSERT INTO known_domains (country, domain, verdict, entry, updated_at) VALUES ($1, $2, $3, $4::jsonb, NOW())`,
			country, d, int16(v), string(entry),
		)
	})
	if encodeErr != nil {
		return encodeErr
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("save registry: %w", err)
			}
		}
		return br.Close()
	})
}
