package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"frontdesk/internal/core"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// MapErr converts driver-level connectivity failures into the transient
// store error so callers can branch on the business code. Anything else
// passes through unchanged.
func MapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return core.StoreUnavailable(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		// Class 08: connection exceptions. Class 53: insufficient resources.
		// Class 57: operator intervention (shutdown, crash recovery).
		switch pgErr.Code[:2] {
		case "08", "53", "57":
			return core.StoreUnavailable(err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) {
		return core.StoreUnavailable(err)
	}
	return err
}
