package errors

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// MySQL: deadlock found / lock wait timeout.
const (
	mysqlDeadlock        = 1213
	mysqlLockWaitTimeout = 1205
)

// Postgres SQLSTATEs for serialization failure and deadlock.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsRetryableDB reports whether err is a transaction contention failure that
// the backend's optimistic retry should absorb. A duplicate key on the active
// match pair counts: the competing transaction committed first and a rerun
// will observe its match.
func IsRetryableDB(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContention) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
