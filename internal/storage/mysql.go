package storage

import (
	"context"
	"database/sql"

	"github.com/relaypool/connpool/internal/pool"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLFactory opens one dedicated *sql.DB per Slot against the given
// DSN, in the go-sql-driver/mysql "user:pass@tcp(host:port)/dbname" form.
type MySQLFactory struct {
	dsn string
}

// NewMySQLFactory builds a factory dialing MySQL at dsn.
func NewMySQLFactory(dsn string) *MySQLFactory {
	return &MySQLFactory{dsn: dsn}
}

func (f *MySQLFactory) Open(ctx context.Context) (pool.PhysicalConnection, error) {
	db, err := sql.Open("mysql", f.dsn)
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

var _ pool.PhysicalFactory = (*MySQLFactory)(nil)
