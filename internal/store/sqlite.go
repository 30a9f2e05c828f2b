package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/company-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS subjects (
	domain     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	logo_url   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS category_results (
	domain     TEXT NOT NULL REFERENCES subjects(domain),
	category   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	sources    TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (domain, category)
);

CREATE INDEX IF NOT EXISTS idx_category_results_domain ON category_results(domain);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSubject(ctx context.Context, domain string) (*model.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT domain, name, logo_url, created_at FROM subjects WHERE domain = ?`,
		domain,
	)

	var subj model.Subject
	err := row.Scan(&subj.Domain, &subj.Name, &subj.LogoURL, &subj.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get subject")
	}
	return &subj, nil
}

func (s *SQLiteStore) UpsertSubject(ctx context.Context, subj model.Subject) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (domain, name, logo_url, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET name = excluded.name, logo_url = excluded.logo_url`,
		subj.Domain, subj.Name, subj.LogoURL, subj.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert subject")
}

func (s *SQLiteStore) GetCategoryResults(ctx context.Context, domain string) (map[model.Category]model.CategoryResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, payload, sources, updated_at FROM category_results WHERE domain = ?`,
		domain,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get category results")
	}
	defer rows.Close()

	results := make(map[model.Category]model.CategoryResult)
	for rows.Next() {
		var (
			res         model.CategoryResult
			payloadJSON string
			sourcesJSON string
			updatedAt   time.Time
		)
		if err := rows.Scan(&res.Category, &payloadJSON, &sourcesJSON, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category result")
		}
		res.Payload = json.RawMessage(payloadJSON)
		if err := json.Unmarshal([]byte(sourcesJSON), &res.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
		res.UpdatedAt = &updatedAt
		results[res.Category] = res
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate category results")
}

func (s *SQLiteStore) PutCategoryResult(ctx context.Context, domain string, res model.CategoryResult) error {
	sourcesJSON, err := json.Marshal(res.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	updatedAt := time.Now().UTC()
	if res.UpdatedAt != nil {
		updatedAt = res.UpdatedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO category_results (domain, category, payload, sources, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(domain, category) DO UPDATE SET
			payload = excluded.payload,
			sources = excluded.sources,
			updated_at = excluded.updated_at`,
		domain, string(res.Category), string(res.Payload), string(sourcesJSON), updatedAt,
	)
	return eris.Wrapf(err, "sqlite: put category result %s/%s", domain, res.Category)
}
