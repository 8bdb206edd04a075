package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const postgresSchema = `CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS owners (
  id SERIAL PRIMARY KEY,
  name TEXT,
  email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layers (
  id SERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  category TEXT,
  description TEXT,
  organization TEXT,
  owner_id INTEGER REFERENCES owners(id),
  data_sources TEXT[],
  sample_url TEXT,
  realtime BOOLEAN NOT NULL DEFAULT FALSE,
  update_rate INTEGER,
  validity TSTZRANGE,
  webservice TEXT,
  bbox GEOMETRY(Geometry, 4326),
  imported_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS layer_properties (
  id SERIAL PRIMARY KEY,
  layer_id INTEGER NOT NULL REFERENCES layers(id) ON DELETE CASCADE,
  key TEXT NOT NULL,
  type TEXT NOT NULL,
  unit TEXT,
  lang TEXT,
  eqprop TEXT,
  descr TEXT
);

CREATE TABLE IF NOT EXISTS prefixes (
  prefix TEXT PRIMARY KEY,
  name TEXT,
  url TEXT NOT NULL
);
`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS owners (
  id INTEGER PRIMARY KEY,
  name TEXT,
  email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layers (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  category TEXT,
  description TEXT,
  organization TEXT,
  owner_id INTEGER REFERENCES owners(id),
  data_sources TEXT,
  sample_url TEXT,
  realtime BOOLEAN NOT NULL DEFAULT 0,
  update_rate INTEGER,
  validity TEXT,
  webservice TEXT,
  bbox BLOB,
  imported_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS layer_properties (
  id INTEGER PRIMARY KEY,
  layer_id INTEGER NOT NULL REFERENCES layers(id) ON DELETE CASCADE,
  key TEXT NOT NULL,
  type TEXT NOT NULL,
  unit TEXT,
  lang TEXT,
  eqprop TEXT,
  descr TEXT
);

CREATE TABLE IF NOT EXISTS prefixes (
  prefix TEXT PRIMARY KEY,
  name TEXT,
  url TEXT NOT NULL
);
`

// Schema returns the DDL of the tables the store reads. SQLite keeps
// data_sources as a Postgres array literal ('{a,b}') and bbox as WKB.
func Schema(d Dialect) (string, error) {
	switch d.Name {
	case Postgres.Name:
		return postgresSchema, nil
	case SQLite.Name:
		return sqliteSchema, nil
	default:
		return "", fmt.Errorf("no schema for dialect %q", d.Name)
	}
}

// CreateSchema creates any missing tables
func (s *SQLStore) CreateSchema(ctx context.Context) error {
	ddl, err := Schema(s.dialect)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", ConvertDBError(err))
	}
	return nil
}

// SeedPrefixes stores prefix to namespace mappings that are not present yet
// and returns how many rows were added. Existing prefixes keep their URL.
func (s *SQLStore) SeedPrefixes(ctx context.Context, namespaces map[string]string) (int, error) {
	prefixes := make([]string, 0, len(namespaces))
	for prefix := range namespaces {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", ConvertDBError(err))
	}
	defer tx.Rollback()

	const query = `INSERT INTO prefixes (prefix, name, url) VALUES ($1, $2, $3) ON CONFLICT (prefix) DO NOTHING`

	added := 0
	for _, prefix := range prefixes {
		name := strings.ToUpper(strings.TrimSuffix(prefix, ":"))
		res, err := tx.ExecContext(ctx, query, prefix, name, namespaces[prefix])
		if err != nil {
			return 0, fmt.Errorf("failed to seed prefix %s: %w", prefix, ConvertDBError(err))
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prefixes: %w", ConvertDBError(err))
	}
	return added, nil
}
