package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it, which keeps the Postgres store testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_subject":          `SELECT domain, name, logo_url, created_at FROM subjects WHERE domain = $1`,
	"get_category_results": `SELECT category, payload, sources, updated_at FROM category_results WHERE domain = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	domain     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	logo_url   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS category_results (
	domain     TEXT NOT NULL REFERENCES subjects(domain),
	category   TEXT NOT NULL,
	payload    JSONB NOT NULL,
	sources    JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (domain, category)
);

CREATE INDEX IF NOT EXISTS idx_category_results_domain ON category_results(domain);
CREATE INDEX IF NOT EXISTS idx_category_results_updated ON category_results(updated_at);
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

func (s *PostgresStore) GetSubject(ctx context.Context, domain string) (*model.Subject, error) {
	var subj model.Subject
	err := s.pool.QueryRow(ctx,
		`SELECT domain, name, logo_url, created_at FROM subjects WHERE domain = $1`,
		domain,
	).Scan(&subj.Domain, &subj.Name, &subj.LogoURL, &subj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get subject %s", domain)
	}
	return &subj, nil
}

func (s *PostgresStore) UpsertSubject(ctx context.Context, subj model.Subject) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subjects (domain, name, logo_url, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (domain) DO UPDATE SET name = $2, logo_url = $3`,
		subj.Domain, subj.Name, subj.LogoURL, subj.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert subject %s", subj.Domain)
}

func (s *PostgresStore) GetCategoryResults(ctx context.Context, domain string) (map[model.Category]model.CategoryResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, payload, sources, updated_at FROM category_results WHERE domain = $1`,
		domain,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get category results %s", domain)
	}
	defer rows.Close()

	results := make(map[model.Category]model.CategoryResult)
	for rows.Next() {
		var (
			res         model.CategoryResult
			payloadJSON []byte
			sourcesJSON []byte
			updatedAt   time.Time
		)
		if err := rows.Scan(&res.Category, &payloadJSON, &sourcesJSON, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category result")
		}
		res.Payload = json.RawMessage(payloadJSON)
		if err := json.Unmarshal(sourcesJSON, &res.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
		res.UpdatedAt = &updatedAt
		results[res.Category] = res
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate category results")
}

func (s *PostgresStore) PutCategoryResult(ctx context.Context, domain string, res model.CategoryResult) error {
	sourcesJSON, err := json.Marshal(res.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	updatedAt := time.Now().UTC()
	if res.UpdatedAt != nil {
		updatedAt = res.UpdatedAt.UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO category_results (domain, category, payload, sources, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain, category) DO UPDATE SET
			payload = $3, sources = $4, updated_at = $5`,
		domain, string(res.Category), []byte(res.Payload), sourcesJSON, updatedAt,
	)
	return eris.Wrapf(err, "postgres: put category result %s/%s", domain, res.Category)
}
