package mysql

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// Dialect — особенности MySQL/InnoDB для sqlstore.
type Dialect struct{}

func (Dialect) Name() string {
	return "mysql"
}

func (Dialect) Placeholder(int) string {
	return "?"
}

// LockTimeoutStatement задаёт таймаут для сессии; он выставляется заново в каждой
// транзакции, поэтому значение с прошлого использования соединения не протекает.
func (Dialect) LockTimeoutStatement(timeout time.Duration) string {
	if timeout <= 0 {
		return ""
	}
	seconds := int64(math.Ceil(timeout.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)
}

func (Dialect) IsLockTimeout(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errLockWaitTimeout || myErr.Number == errLockDeadlock
}
