package store

import (
	"fmt"
	"strings"
)

// Dialect captures the per-database differences of the layer queries
type Dialect struct {
	// Name identifies the dialect in logs and config
	Name string
	// DriverName is the database/sql driver to open
	DriverName string
	// BBoxExpr selects the bounding box as WKB
	BBoxExpr string
	// ValidityExpr selects the validity window as text
	ValidityExpr string
}

var (
	// Postgres reads PostGIS geometries through the pgx driver
	Postgres = Dialect{
		Name:         "postgres",
		DriverName:   "pgx",
		BBoxExpr:     "ST_AsBinary(l.bbox)",
		ValidityExpr: "l.validity::text",
	}

	// PostgresPQ is Postgres through the lib/pq driver
	PostgresPQ = Dialect{
		Name:         "postgres",
		DriverName:   "postgres",
		BBoxExpr:     "ST_AsBinary(l.bbox)",
		ValidityExpr: "l.validity::text",
	}

	// SQLite stores bounding boxes as raw WKB blobs
	SQLite = Dialect{
		Name:         "sqlite",
		DriverName:   "sqlite3",
		BBoxExpr:     "l.bbox",
		ValidityExpr: "l.validity",
	}
)

// DialectFor picks a dialect from a database URL and returns the DSN to
// hand to the driver. driver optionally forces "pgx" or "postgres" for
// Postgres URLs.
func DialectFor(url, driver string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		switch driver {
		case "", "pgx":
			return Postgres, url, nil
		case "postgres", "pq":
			return PostgresPQ, url, nil
		default:
			return Dialect{}, "", fmt.Errorf("unsupported postgres driver: %s", driver)
		}
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "file:"), url == ":memory:", strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
		return SQLite, url, nil
	case url == "":
		return Dialect{}, "", fmt.Errorf("database url is empty")
	default:
		return Dialect{}, "", fmt.Errorf("unsupported database url: %s", url)
	}
}
