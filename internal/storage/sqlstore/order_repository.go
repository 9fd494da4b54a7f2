package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
)

const (
	queryTimeout = 5 * time.Second

	orderColumns = `order_id, customer_name, total_amount, status, created_at`
)

// OrderRepository реализует domain.OrderRepository поверх *sql.DB.
type OrderRepository struct {
	db          *sql.DB
	dialect     Dialect
	lockTimeout time.Duration
}

// NewOrderRepository создаёт репозиторий; lockTimeout применяется к каждой транзакции.
func NewOrderRepository(db *sql.DB, dialect Dialect, lockTimeout time.Duration) *OrderRepository {
	return &OrderRepository{
		db:          db,
		dialect:     dialect,
		lockTimeout: lockTimeout,
	}
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_id = `+r.dialect.Placeholder(1), id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NewOrderNotFoundError(id)
		}
		return domain.Order{}, r.wrap("select order", err)
	}
	return order, nil
}

func (r *OrderRepository) ListByStatus(ctx context.Context, filter domain.ListFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args := buildListQuery(r.dialect, filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrap("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, r.wrap("scan order row", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("iterate order rows", err)
	}

	return orders, nil
}

func (r *OrderRepository) BatchUpdateStatus(ctx context.Context, ids []int64, from, to domain.OrderStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args := buildBatchUpdateQuery(r.dialect, ids, from, to)

	var affected int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return r.wrap("batch update status", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return r.wrap("rows affected", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *OrderRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.OrderTx) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &orderTx{tx: tx, repo: r})
	})
}

// inTx открывает READ COMMITTED транзакцию с ограничением ожидания блокировок.
func (r *OrderRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return r.wrap("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if stmt := r.dialect.LockTimeoutStatement(r.lockTimeout); stmt != "" {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return r.wrap("set lock timeout", err)
		}
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return r.wrap("commit tx", err)
	}
	return nil
}

// wrap приводит ошибку драйвера к таксономии домена.
func (r *OrderRepository) wrap(op string, err error) error {
	if r.dialect.IsLockTimeout(err) {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrLockTimeout, r.dialect.Name(), op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, r.dialect.Name(), op, err)
}

type orderTx struct {
	tx   *sql.Tx
	repo *OrderRepository
}

func (t *orderTx) FindByIDForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_id = `+t.repo.dialect.Placeholder(1)+`
		FOR UPDATE`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NewOrderNotFoundError(id)
		}
		return domain.Order{}, t.repo.wrap("select order for update", err)
	}
	return order, nil
}

func (t *orderTx) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = `+t.repo.dialect.Placeholder(1)+`
		WHERE order_id = `+t.repo.dialect.Placeholder(2),
		string(status), id,
	)
	if err != nil {
		return t.repo.wrap("update status", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return t.repo.wrap("rows affected", err)
	}
	if affected == 0 {
		return domain.NewOrderNotFoundError(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder терпим к NULL в необязательных колонках legacy-таблицы.
func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		customer  sql.NullString
		total     decimal.NullDecimal
		status    sql.NullString
		createdAt sql.NullTime
	)
	if err := row.Scan(&order.ID, &customer, &total, &status, &createdAt); err != nil {
		return domain.Order{}, err
	}

	order.CustomerName = customer.String
	if total.Valid {
		order.TotalAmount = total.Decimal
	}
	order.Status = domain.OrderStatus(status.String)
	if createdAt.Valid {
		order.CreatedAt = createdAt.Time
	}
	return order, nil
}

func buildListQuery(dialect Dialect, filter domain.ListFilter) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)

	b.WriteString("SELECT " + orderColumns + " FROM orders")
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		b.WriteString(" WHERE status = " + dialect.Placeholder(len(args)))
	}
	b.WriteString(" ORDER BY created_at DESC, order_id DESC")

	limit := filter.Limit
	if limit <= 0 && filter.Offset > 0 {
		// OFFSET без LIMIT MySQL не принимает.
		limit = math.MaxInt32
	}
	if limit > 0 {
		args = append(args, limit)
		b.WriteString(" LIMIT " + dialect.Placeholder(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		b.WriteString(" OFFSET " + dialect.Placeholder(len(args)))
	}

	return b.String(), args
}

func buildBatchUpdateQuery(dialect Dialect, ids []int64, from, to domain.OrderStatus) (string, []any) {
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(to), string(from))

	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, dialect.Placeholder(len(args)))
	}

	query := "UPDATE orders SET status = " + dialect.Placeholder(1) +
		" WHERE status = " + dialect.Placeholder(2) +
		" AND order_id IN (" + strings.Join(placeholders, ", ") + ")"
	return query, args
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
