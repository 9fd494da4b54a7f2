package postgres

import (
	"time"

	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/sqlstore"
)

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store, lockTimeout time.Duration) *sqlstore.OrderRepository {
	return sqlstore.NewOrderRepository(store.DB(), Dialect{}, lockTimeout)
}
