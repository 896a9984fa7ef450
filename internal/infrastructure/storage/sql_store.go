package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"CaseCollector/internal/ports"
)

var (
	_ ports.DocumentStore = (*SQLStore)(nil)
	_ ports.BatchSaver    = (*SQLStore)(nil)
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const collectionsTable = "case_collections"

const createCollectionsTable = `CREATE TABLE IF NOT EXISTS case_collections (
    name       TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// SQLStore persists collections as rows of case_collections in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

// OpenSQL connects to the database and creates the collections table.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = sq.Question
	case DriverPostgres:
		placeholder = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	store := NewSQLStore(db, placeholder)
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB, placeholder sq.PlaceholderFormat) *SQLStore {
	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCollectionsTable); err != nil {
		return &Error{Op: OpMigrate, Collection: collectionsTable, Err: err}
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, collection string) ([]byte, error) {
	query, args, err := s.builder.
		Select("payload").
		From(collectionsTable).
		Where(sq.Eq{"name": collection}).
		ToSql()
	if err != nil {
		return nil, &Error{Op: OpLoad, Collection: collection, Err: err}
	}

	var payload string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Op: OpLoad, Collection: collection, Err: err}
	}
	return []byte(payload), nil
}

func (s *SQLStore) Save(ctx context.Context, collection string, payload []byte) error {
	query, args, err := s.upsert(collection, payload)
	if err != nil {
		return &Error{Op: OpSave, Collection: collection, Err: err}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &Error{Op: OpSave, Collection: collection, Err: err}
	}
	return nil
}

// SaveBatch writes every collection in one transaction.
func (s *SQLStore) SaveBatch(ctx context.Context, payloads map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: OpSaveBatch, Err: fmt.Errorf("begin: %w", err)}
	}

	for _, name := range slices.Sorted(maps.Keys(payloads)) {
		query, args, err := s.upsert(name, payloads[name])
		if err != nil {
			_ = tx.Rollback()
			return &Error{Op: OpSaveBatch, Collection: name, Err: err}
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return &Error{Op: OpSaveBatch, Collection: name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &Error{Op: OpSaveBatch, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (s *SQLStore) upsert(collection string, payload []byte) (string, []any, error) {
	return s.builder.
		Insert(collectionsTable).
		Columns("name", "payload", "updated_at").
		Values(collection, string(payload), s.now().UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at").
		ToSql()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
