// Package storage provides pool.PhysicalFactory implementations backed by
// real database/sql drivers, plus a MockFactory for tests that never
// touch a real database.
package storage

import (
	"context"
	"database/sql"

	"github.com/relaypool/connpool/internal/pool"
)

// sqlConnection adapts a *sql.DB (already opened, one per Slot) to
// pool.PhysicalConnection. database/sql pools internally, but here each
// sqlConnection wraps a single-connection *sql.DB dedicated to one Slot,
// so PingContext genuinely exercises the one physical link the Slot
// owns.
type sqlConnection struct {
	db *sql.DB
}

func (c *sqlConnection) IsClosed() bool {
	return c.db.PingContext(context.Background()) != nil
}

func (c *sqlConnection) IsValid(timeoutSeconds int) bool {
	ctx := context.Background()
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, secondsToDuration(timeoutSeconds))
		defer cancel()
	}
	return c.db.PingContext(ctx) == nil
}

func (c *sqlConnection) Close() error {
	return c.db.Close()
}

// Unwrap exposes the underlying *sql.DB for callers that need to issue
// real queries against the connection they acquired.
func (c *sqlConnection) Unwrap() *sql.DB {
	return c.db
}

var _ pool.PhysicalConnection = (*sqlConnection)(nil)
