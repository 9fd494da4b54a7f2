package sqlstore

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
)

var errFakeLock = errors.New("fake lock wait timeout")

type numberedDialect struct{}

func (numberedDialect) Name() string { return "fake" }

func (numberedDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (numberedDialect) IsLockTimeout(err error) bool { return errors.Is(err, errFakeLock) }

func (numberedDialect) LockTimeoutStatement(time.Duration) string {
	return ""
}

type questionDialect struct{ numberedDialect }

func (questionDialect) Placeholder(int) string { return "?" }

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name      string
		dialect   Dialect
		filter    domain.ListFilter
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			dialect:   numberedDialect{},
			filter:    domain.ListFilter{},
			wantQuery: "SELECT " + orderColumns + " FROM orders ORDER BY created_at DESC, order_id DESC",
		},
		{
			name:      "status and limit",
			dialect:   numberedDialect{},
			filter:    domain.ListFilter{Status: domain.OrderStatusPaid, Limit: 50},
			wantQuery: "SELECT " + orderColumns + " FROM orders WHERE status = $1 ORDER BY created_at DESC, order_id DESC LIMIT $2",
			wantArgs:  []any{"paid", 50},
		},
		{
			name:      "offset without limit",
			dialect:   questionDialect{},
			filter:    domain.ListFilter{Offset: 10},
			wantQuery: "SELECT " + orderColumns + " FROM orders ORDER BY created_at DESC, order_id DESC LIMIT ? OFFSET ?",
			wantArgs:  []any{2147483647, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.dialect, tt.filter)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildBatchUpdateQuery(t *testing.T) {
	query, args := buildBatchUpdateQuery(numberedDialect{}, []int64{3, 5}, domain.OrderStatusPending, domain.OrderStatusCancelled)
	assert.Equal(t, "UPDATE orders SET status = $1 WHERE status = $2 AND order_id IN ($3, $4)", query)
	assert.Equal(t, []any{"cancelled", "pending", int64(3), int64(5)}, args)

	query, _ = buildBatchUpdateQuery(questionDialect{}, []int64{3}, domain.OrderStatusPending, domain.OrderStatusCancelled)
	assert.Equal(t, "UPDATE orders SET status = ? WHERE status = ? AND order_id IN (?)", query)
}

func TestOrderRepository_Wrap(t *testing.T) {
	repo := NewOrderRepository(nil, numberedDialect{}, time.Second)

	lockErr := repo.wrap("select order for update", errFakeLock)
	require.ErrorIs(t, lockErr, domain.ErrLockTimeout)
	require.ErrorIs(t, lockErr, errFakeLock)
	require.NotErrorIs(t, lockErr, domain.ErrStorage)
	assert.True(t, domain.IsRetryable(lockErr))

	storageErr := repo.wrap("commit tx", errors.New("connection reset"))
	require.ErrorIs(t, storageErr, domain.ErrStorage)
	require.NotErrorIs(t, storageErr, domain.ErrLockTimeout)
	assert.Contains(t, storageErr.Error(), "fake commit tx")
}

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch target := d.(type) {
		case *int64:
			*target = r.values[i].(int64)
		default:
			scanner, ok := d.(interface{ Scan(any) error })
			if !ok {
				return errors.New("unsupported destination")
			}
			if err := scanner.Scan(r.values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestScanOrder(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	order, err := scanOrder(fakeRow{values: []any{int64(7), "Alice", "12.5", "pending", created}})
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, "Alice", order.CustomerName)
	assert.True(t, decimal.RequireFromString("12.50").Equal(order.TotalAmount))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, created, order.CreatedAt)

	legacy, err := scanOrder(fakeRow{values: []any{int64(8), nil, nil, "paid", nil}})
	require.NoError(t, err)
	assert.Empty(t, legacy.CustomerName)
	assert.True(t, legacy.TotalAmount.IsZero())
	assert.True(t, legacy.CreatedAt.IsZero())
}
