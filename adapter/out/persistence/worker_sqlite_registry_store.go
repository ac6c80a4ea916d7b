package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS known_domains (
	country    TEXT    NOT NULL,
	domain     TEXT    NOT NULL,
	verdict    INTEGER NOT NULL,
	entry      TEXT    NOT NULL DEFAULT '{}',
	updated_at TEXT    NOT NULL,
	PRIMARY KEY (country, domain)
);
CREATE INDEX IF NOT EXISTS idx_known_domains_verdict ON known_domains (country, verdict);
`

// SQLiteRegistryStore keeps the registries of all countries in one SQLite file.
type SQLiteRegistryStore struct {
	db *sqlx.DB
}

var _ out.RegistryStore = (*SQLiteRegistryStore)(nil)

// OpenSQLiteRegistryStore opens (and creates) the database at path.
// ":memory:" works for tests.
func OpenSQLiteRegistryStore(path string) (*SQLiteRegistryStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite registry: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteRegistryStore{db: db}, nil
}

func (s *SQLiteRegistryStore) Close() error {
	return s.db.Close()
}

// DB exposes the connection pool for monitoring.
func (s *SQLiteRegistryStore) DB() *sql.DB {
	return s.db.DB
}

type domainRow struct {
	Domain  string `db:"domain"`
	Verdict int    `db:"verdict"`
	Entry   string `db:"entry"`
}

func (s *SQLiteRegistryStore) Load(ctx context.Context, country string) (domain.Buckets, error) {
	const query = `SELECT domain, verdict, entry FROM known_domains WHERE country = ?`

	var rows []domainRow
	if err := s.db.SelectContext(ctx, &rows, query, strings.ToLower(country)); err != nil {
		return domain.Buckets{}, fmt.Errorf("load registry: %w", err)
	}
	return rowsToBuckets(rows)
}

// Save replaces the stored registry of country with buckets.
func (s *SQLiteRegistryStore) Save(ctx context.Context, country string, buckets domain.Buckets) error {
	country = strings.ToLower(country)
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM known_domains WHERE country = ?`, country); err != nil {
		return fmt.Errorf("clear registry: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO known_domains (country, domain, verdict, entry, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare registry insert: %w", err)
	}
	defer stmt.Close()

	var insertErr error
	buckets.Each(func(d string, v domain.Verdict, e domain.RegistryEntry) {
		if insertErr != nil {
			return
		}
		entry, err := json.Marshal(e)
		if err != nil {
			insertErr = fmt.Errorf("encode entry for %s: %w", d, err)
			return
		}
		if _, err := stmt.ExecContext(ctx, country, d, int(v), string(entry), now); err != nil {
			insertErr = fmt.Errorf("insert %s: %w", d, err)
		}
	})
	if insertErr != nil {
		return insertErr
	}
	return tx.Commit()
}

func rowsToBuckets(rows []domainRow) (domain.Buckets, error) {
	b := domain.NewBuckets()
	for _, r := range rows {
		var e domain.RegistryEntry
		if r.Entry != "" {
			if err := json.Unmarshal([]byte(r.Entry), &e); err != nil {
				return domain.Buckets{}, fmt.Errorf("decode entry for %s: %w", r.Domain, err)
			}
		}
		v := domain.Verdict(r.Verdict)
		if !v.Valid() {
			return domain.Buckets{}, fmt.Errorf("domain %s: unexpected verdict %d", r.Domain, r.Verdict)
		}
		b.Put(r.Domain, v, e)
	}
	return b, nil
}
