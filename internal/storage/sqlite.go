package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/relaypool/connpool/internal/pool"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteFactory opens one dedicated *sql.DB per Slot against the same
// database file. SetMaxOpenConns(1) keeps each factory-issued handle to
// exactly the single physical connection the pool's own Slot accounting
// assumes.
type SQLiteFactory struct {
	dsn string
}

// NewSQLiteFactory builds a factory dialing the SQLite database at dsn
// (a file path, or ":memory:" for a throwaway database).
func NewSQLiteFactory(dsn string) *SQLiteFactory {
	return &SQLiteFactory{dsn: dsn}
}

func (f *SQLiteFactory) Open(ctx context.Context) (pool.PhysicalConnection, error) {
	db, err := sql.Open("sqlite3", f.dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlConnection{db: db}, nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

var _ pool.PhysicalFactory = (*SQLiteFactory)(nil)
