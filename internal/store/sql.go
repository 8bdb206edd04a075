package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/layer"
)

// Config holds database connection settings
type Config struct {
	// URL is the database URL (postgres://..., sqlite://...)
	URL string
	// Driver optionally forces the Postgres driver ("pgx" or "postgres")
	Driver string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns pool settings suited to a read-mostly catalog
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// SQLStore implements Store on top of database/sql
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to the database described by cfg and verifies the connection
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*SQLStore, error) {
	dialect, dsn, err := DialectFor(cfg.URL, cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrUnavailable, err)
	}

	return NewSQLStore(db, dialect, logger), nil
}

// NewSQLStore wraps an existing connection pool
func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger.Named("store"),
	}
}

// DB exposes the underlying pool
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) layerSelect() string {
	return fmt.Sprintf(`SELECT l.id, l.name, l.category, l.description, l.organization,
  o.email, l.data_sources, l.sample_url, l.realtime, l.update_rate,
  %s, l.webservice, %s, l.imported_at
FROM layers l
LEFT JOIN owners o ON o.id = l.owner_id`, s.dialect.ValidityExpr, s.dialect.BBoxExpr)
}

// LayerByID returns a single layer or ErrNotFound
func (s *SQLStore) LayerByID(ctx context.Context, id int64) (*layer.Layer, error) {
	query := s.layerSelect() + "\nWHERE l.id = $1"

	row := s.db.QueryRowContext(ctx, query, id)
	l, err := scanLayer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load layer %d: %w", id, ConvertDBError(err))
	}

	return l, nil
}

// Layers returns every layer ordered by id
func (s *SQLStore) Layers(ctx context.Context) ([]*layer.Layer, error) {
	return s.queryLayers(ctx, s.layerSelect()+"\nORDER BY l.id")
}

// LayersByNamePrefix returns layers whose name starts with prefix
func (s *SQLStore) LayersByNamePrefix(ctx context.Context, prefix string) ([]*layer.Layer, error) {
	query := s.layerSelect() + "\nWHERE l.name LIKE $1 ESCAPE '\\'\nORDER BY l.id"
	return s.queryLayers(ctx, query, escapeLike(prefix)+"%")
}

func (s *SQLStore) queryLayers(ctx context.Context, query string, args ...interface{}) ([]*layer.Layer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", ConvertDBError(err))
	}
	defer rows.Close()

	var layers []*layer.Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", ConvertDBError(err))
		}
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate layers: %w", ConvertDBError(err))
	}

	s.logger.Debug("loaded layers", zap.Int("count", len(layers)))
	return layers, nil
}

// Properties returns a layer's properties ordered by id
func (s *SQLStore) Properties(ctx context.Context, layerID int64) ([]*layer.Property, error) {
	query := `SELECT id, layer_id, key, type, unit, lang, eqprop, descr
FROM layer_properties
WHERE layer_id = $1
ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, layerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties of layer %d: %w", layerID, ConvertDBError(err))
	}
	defer rows.Close()

	var props []*layer.Property
	for rows.Next() {
		var (
			p                                 layer.Property
			key, typ, unit, lang, eqp, descr sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.LayerID, &key, &typ, &unit, &lang, &eqp, &descr); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", ConvertDBError(err))
		}
		p.Key = key.String
		p.Type = typ.String
		p.Unit = unit.String
		p.Lang = lang.String
		p.EqProp = eqp.String
		p.Descr = descr.String
		props = append(props, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", ConvertDBError(err))
	}

	return props, nil
}

// Prefix looks up an RDF prefix mapping
func (s *SQLStore) Prefix(ctx context.Context, prefix string) (*layer.PrefixMapping, error) {
	query := "SELECT prefix, url FROM prefixes WHERE prefix = $1 LIMIT 1"

	var m layer.PrefixMapping
	if err := s.db.QueryRowContext(ctx, query, prefix).Scan(&m.Prefix, &m.URL); err != nil {
		return nil, fmt.Errorf("failed to load prefix %s: %w", prefix, ConvertDBError(err))
	}

	return &m, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLayer(row scanner) (*layer.Layer, error) {
	var (
		l            layer.Layer
		category     sql.NullString
		description  sql.NullString
		organization sql.NullString
		email        sql.NullString
		dataSources  pq.StringArray
		sampleURL    sql.NullString
		realtime     sql.NullBool
		updateRate   sql.NullInt64
		validity     sql.NullString
		webservice   sql.NullString
		bbox         []byte
		importedAt   sql.NullTime
	)

	err := row.Scan(
		&l.ID, &l.Name, &category, &description, &organization,
		&email, &dataSources, &sampleURL, &realtime, &updateRate,
		&validity, &webservice, &bbox, &importedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Category = category.String
	l.Description = description.String
	l.Organization = organization.String
	l.OwnerEmail = email.String
	if len(dataSources) > 0 {
		l.DataSources = []string(dataSources)
	}
	l.SampleURL = sampleURL.String
	l.Realtime = realtime.Bool
	if updateRate.Valid {
		rate := updateRate.Int64
		l.UpdateRate = &rate
	}
	l.Validity = validity.String
	l.Webservice = webservice.String
	if len(bbox) > 0 {
		l.BBox = bbox
	}
	l.ImportedAt = importedAt.Time

	return &l, nil
}

// escapeLike escapes LIKE metacharacters so prefix matching is literal
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
