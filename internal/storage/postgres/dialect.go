package postgres

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateLockNotAvailable = "55P03"
	sqlStateDeadlockDetected = "40P01"
)

// Dialect — особенности PostgreSQL для sqlstore.
type Dialect struct{}

func (Dialect) Name() string {
	return "postgres"
}

func (Dialect) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// LockTimeoutStatement действует только до конца текущей транзакции.
func (Dialect) LockTimeoutStatement(timeout time.Duration) string {
	if timeout <= 0 {
		return ""
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

func (Dialect) IsLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateLockNotAvailable || pgErr.Code == sqlStateDeadlockDetected
}
