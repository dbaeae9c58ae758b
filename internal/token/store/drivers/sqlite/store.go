package sqlite

import (
	"context"
	"database/sql"

	"github.com/lockbridge/tokenvault/internal/token/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// WAL keeps revocation reads from blocking on concurrent writes.
	if _, err := db.ExecContext(context.Background(), `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Revocations() store.Revocations       { return &revocationsRepo{db: s.db} }
func (s *Store) KeyGenerations() store.KeyGenerations { return &keyGenerationsRepo{db: s.db} }
