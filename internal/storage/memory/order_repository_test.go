package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/memory"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrder(id int64, status domain.OrderStatus, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:           id,
		CustomerName: "customer",
		TotalAmount:  decimal.RequireFromString("10.00"),
		Status:       status,
		CreatedAt:    createdAt,
	}
}

func TestOrderRepository_InsertFind(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder(7, domain.OrderStatusPending, baseTime)

	require.NoError(t, repo.Insert(order))
	require.ErrorIs(t, repo.Insert(order), domain.ErrStorage)

	stored, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, order, stored)

	_, err = repo.FindByID(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_ListByStatus(t *testing.T) {
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Insert(newOrder(1, domain.OrderStatusPending, baseTime)))
	require.NoError(t, repo.Insert(newOrder(2, domain.OrderStatusPaid, baseTime.Add(time.Minute))))
	require.NoError(t, repo.Insert(newOrder(3, domain.OrderStatusPending, baseTime.Add(2*time.Minute))))
	// совпадающий created_at: порядок определяется order_id DESC
	require.NoError(t, repo.Insert(newOrder(4, domain.OrderStatusPending, baseTime.Add(2*time.Minute))))

	ctx := context.Background()

	all, err := repo.ListByStatus(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 3, 2, 1}, ids(all))

	pending, err := repo.ListByStatus(ctx, domain.ListFilter{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 3, 1}, ids(pending))

	window, err := repo.ListByStatus(ctx, domain.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2}, ids(window))

	empty, err := repo.ListByStatus(ctx, domain.ListFilter{Offset: 10})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestOrderRepository_TxCommitAndRollback(t *testing.T) {
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Insert(newOrder(7, domain.OrderStatusPending, baseTime)))
	ctx := context.Background()

	errAbort := errors.New("abort")
	err := repo.WithinTx(ctx, func(ctx context.Context, tx domain.OrderTx) error {
		require.NoError(t, tx.UpdateStatus(ctx, 7, domain.OrderStatusPaid))

		locked, err := tx.FindByIDForUpdate(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusPaid, locked.Status)

		committed, err := repo.FindByID(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, domain.OrderStatusPending, committed.Status, "uncommitted write must stay invisible")
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	stored, err := repo.FindByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, stored.Status)

	err = repo.WithinTx(ctx, func(ctx context.Context, tx domain.OrderTx) error {
		if _, err := tx.FindByIDForUpdate(ctx, 7); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, 7, domain.OrderStatusProcessing)
	})
	require.NoError(t, err)

	stored, err = repo.FindByID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusProcessing, stored.Status)
}

func TestOrderRepository_ForUpdateMissingRow(t *testing.T) {
	repo := memory.NewOrderRepository()
	err := repo.WithinTx(context.Background(), func(ctx context.Context, tx domain.OrderTx) error {
		_, err := tx.FindByIDForUpdate(ctx, 99)
		return err
	})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_LockTimeout(t *testing.T) {
	repo := memory.NewOrderRepository(memory.WithLockTimeout(20 * time.Millisecond))
	require.NoError(t, repo.Insert(newOrder(7, domain.OrderStatusPending, baseTime)))

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = repo.WithinTx(context.Background(), func(ctx context.Context, tx domain.OrderTx) error {
			if _, err := tx.FindByIDForUpdate(ctx, 7); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked

	err := repo.WithinTx(context.Background(), func(ctx context.Context, tx domain.OrderTx) error {
		_, err := tx.FindByIDForUpdate(ctx, 7)
		return err
	})
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	_, err = repo.BatchUpdateStatus(context.Background(), []int64{7}, domain.OrderStatusPending, domain.OrderStatusPaid)
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	close(done)

	// после освобождения блокировка снова доступна
	require.Eventually(t, func() bool {
		err := repo.WithinTx(context.Background(), func(ctx context.Context, tx domain.OrderTx) error {
			_, err := tx.FindByIDForUpdate(ctx, 7)
			return err
		})
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestOrderRepository_LockRespectsContext(t *testing.T) {
	repo := memory.NewOrderRepository(memory.WithLockTimeout(0))
	require.NoError(t, repo.Insert(newOrder(7, domain.OrderStatusPending, baseTime)))

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = repo.WithinTx(context.Background(), func(ctx context.Context, tx domain.OrderTx) error {
			_, err := tx.FindByIDForUpdate(ctx, 7)
			close(locked)
			<-done
			return err
		})
	}()
	<-locked
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := repo.WithinTx(ctx, func(ctx context.Context, tx domain.OrderTx) error {
		_, err := tx.FindByIDForUpdate(ctx, 7)
		return err
	})
	require.ErrorIs(t, err, domain.ErrStorage)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrderRepository_BatchUpdateStatus(t *testing.T) {
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Insert(newOrder(1, domain.OrderStatusPending, baseTime)))
	require.NoError(t, repo.Insert(newOrder(2, domain.OrderStatusPending, baseTime)))
	require.NoError(t, repo.Insert(newOrder(3, domain.OrderStatusPaid, baseTime)))
	ctx := context.Background()

	updated, err := repo.BatchUpdateStatus(ctx, []int64{1, 2, 2, 3, 404}, domain.OrderStatusPending, domain.OrderStatusCancelled)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	for id, want := range map[int64]domain.OrderStatus{
		1: domain.OrderStatusCancelled,
		2: domain.OrderStatusCancelled,
		3: domain.OrderStatusPaid,
	} {
		order, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, order.Status, "order #%d", id)
	}

	updated, err = repo.BatchUpdateStatus(ctx, nil, domain.OrderStatusPending, domain.OrderStatusCancelled)
	require.NoError(t, err)
	require.Zero(t, updated)
}

func ids(orders []domain.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, order := range orders {
		out = append(out, order.ID)
	}
	return out
}
