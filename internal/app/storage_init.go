package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/legacy-orders/internal/health"
	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/mysql"
	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/postgres"
)

const storagePingTimeout = 2 * time.Second

type runtimeDependencies struct {
	repo           domain.OrderRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	} else {
		logger.Info("storage closed")
	}
}

// initRuntimeDependencies открывает хранилище, выбранное в cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		repo := memory.NewOrderRepository(memory.WithLockTimeout(cfg.LockTimeout))
		if err := seedMemoryOrders(repo, cfg.MemorySeedOrders, time.Now().UTC()); err != nil {
			return nil, err
		}
		logger.WithField("seeded", cfg.MemorySeedOrders).Info("using in-memory storage")

		return &runtimeDependencies{
			repo: repo,
			storageChecker: healthcheck.NewPingChecker("storage", func(context.Context) error {
				return nil
			}, storagePingTimeout),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("postgres storage requires DSN")
		}
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		logger.Info("using postgres storage")

		return &runtimeDependencies{
			repo:           postgres.NewOrderRepository(store, cfg.LockTimeout),
			storageChecker: healthcheck.NewPingChecker("storage", store.Ping, storagePingTimeout),
			closeFn:        store.Close,
		}, nil

	case StorageDriverMySQL:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("mysql storage requires DSN")
		}
		store, err := mysql.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql storage: %w", err)
		}
		logger.Info("using mysql storage")

		return &runtimeDependencies{
			repo:           mysql.NewOrderRepository(store, cfg.LockTimeout),
			storageChecker: healthcheck.NewPingChecker("storage", store.Ping, storagePingTimeout),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// seedMemoryOrders добавляет n заказов pending с order_id 1..n.
func seedMemoryOrders(repo *memory.OrderRepository, n int, now time.Time) error {
	for i := 1; i <= n; i++ {
		order := domain.Order{
			ID:           int64(i),
			CustomerName: fmt.Sprintf("Customer %d", i),
			TotalAmount:  decimal.New(int64(i)*1250, -2),
			Status:       domain.OrderStatusPending,
			CreatedAt:    now.Add(-time.Duration(n-i) * time.Minute),
		}
		if err := repo.Insert(order); err != nil {
			return fmt.Errorf("seed memory orders: %w", err)
		}
	}
	return nil
}
