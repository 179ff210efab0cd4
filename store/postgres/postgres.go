// Package postgres keeps session records in a PostgreSQL table, one row per
// storage name, and uses LISTEN/NOTIFY to report changes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/lunar-session/store"
)

var (
	_ store.Store              = (*Store)(nil)
	_ store.Watcher            = (*Store)(nil)
	_ store.ConditionalClearer = (*Store)(nil)
)

const (
	defaultSchema = "lunar"
	tableName     = "session_records"
)

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Store is a record slot backed by PostgreSQL.
//
// Store does not own the pool; the caller closes it.
type Store struct {
	pool   *pgxpool.Pool
	schema string
	name   string
}

type Option func(*Store) error

// WithSchema sets the schema holding the records table (default "lunar").
func WithSchema(schema string) Option {
	return func(s *Store) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("postgres store: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return errors.New("postgres store: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// New returns a store for the record called name.
func New(pool *pgxpool.Pool, name string, opts ...Option) (*Store, error) {
	s := &Store{pool: pool, schema: defaultSchema, name: name}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("postgres store: nil pool")
	}
	if s.name == "" {
		return nil, errors.New("postgres store: empty name")
	}
	return s, nil
}

// Open creates a pool for databaseURL and verifies connectivity.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func (s *Store) table() string {
	return pgx.Identifier{s.schema, tableName}.Sanitize()
}

// Channel is the notification channel changes are announced on.
func (s *Store) Channel() string {
	return s.schema + "_session_changed"
}

// EnsureSchema creates the schema and records table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + s.table() + ` (
			name       text PRIMARY KEY,
			data       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (*store.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM `+s.table()+` WHERE name = $1`, s.name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres load: %w", err)
	}
	return store.Unmarshal(data)
}

// Save upserts the record and notifies listeners in the same transaction.
func (s *Store) Save(ctx context.Context, record *store.Record) error {
	data, err := store.Marshal(record)
	if err != nil {
		return err
	}
	return s.withNotify(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO `+s.table()+` (name, data, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			s.name, data)
		return err
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.withNotify(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM `+s.table()+` WHERE name = $1`, s.name)
		return err
	})
}

// ClearIfHolds deletes the row only while its refreshToken matches. Listeners
// are notified only when a row was removed.
func (s *Store) ClearIfHolds(ctx context.Context, refreshToken string) (bool, error) {
	cleared := false
	err := s.withNotify(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM `+s.table()+` WHERE name = $1 AND data->>'refreshToken' = $2`,
			s.name, refreshToken)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errNothingCleared
		}
		cleared = true
		return nil
	})
	if errors.Is(err, errNothingCleared) {
		return false, nil
	}
	return cleared, err
}

var errNothingCleared = errors.New("no matching record")

func (s *Store) withNotify(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return fmt.Errorf("postgres write: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.Channel(), s.name); err != nil {
		return fmt.Errorf("postgres notify: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	return nil
}

// Watch holds one pooled connection in LISTEN mode until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("postgres acquire: %w", err)
	}
	defer conn.Release()

	channel := pgx.Identifier{s.Channel()}.Sanitize()
	if _, err := conn.Exec(ctx, `LISTEN `+channel); err != nil {
		return fmt.Errorf("postgres listen: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), `UNLISTEN `+channel)
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("postgres wait: %w", err)
		}
		if n.Payload == s.name {
			onChange()
		}
	}
}
