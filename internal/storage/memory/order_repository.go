package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
)

const defaultLockTimeout = 5 * time.Second

// OrderRepository — in-memory эмуляция таблицы orders для локального запуска и тестов.
// Блокировки строк эмулируются семафорами и, как в СУБД, видны всем транзакциям
// этого процесса; незакоммиченные записи не видны обычным чтениям.
type OrderRepository struct {
	mu          sync.RWMutex
	rows        map[int64]domain.Order
	locks       map[int64]chan struct{}
	lockTimeout time.Duration
}

// Option настраивает OrderRepository.
type Option func(*OrderRepository)

// WithLockTimeout задаёт время ожидания блокировки строки (0 означает ждать бесконечно).
func WithLockTimeout(timeout time.Duration) Option {
	return func(r *OrderRepository) {
		r.lockTimeout = timeout
	}
}

// NewOrderRepository возвращает пустой in-memory репозиторий.
func NewOrderRepository(opts ...Option) *OrderRepository {
	r := &OrderRepository{
		rows:        make(map[int64]domain.Order),
		locks:       make(map[int64]chan struct{}),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert добавляет строку так, как это сделала бы внешняя система.
func (r *OrderRepository) Insert(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[order.ID]; exists {
		return fmt.Errorf("%w: duplicate order_id %d", domain.ErrStorage, order.ID)
	}
	r.rows[order.ID] = order
	return nil
}

// FindByID возвращает закоммиченное состояние строки.
func (r *OrderRepository) FindByID(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.rows[id]
	if !ok {
		return domain.Order{}, domain.NewOrderNotFoundError(id)
	}
	return order, nil
}

// ListByStatus фильтрует, сортирует по created_at DESC, order_id DESC и применяет окно.
func (r *OrderRepository) ListByStatus(_ context.Context, filter domain.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.rows))
	for _, order := range r.rows {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Order{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// BatchUpdateStatus эмулирует один UPDATE ... WHERE order_id IN (...) AND status = from.
// Оператор атомарен: на время выполнения он держит блокировки затронутых строк.
func (r *OrderRepository) BatchUpdateStatus(ctx context.Context, ids []int64, from, to domain.OrderStatus) (int64, error) {
	unique := uniqueSorted(ids)
	held := make([]int64, 0, len(unique))
	defer func() {
		for _, id := range held {
			r.release(id)
		}
	}()

	for _, id := range unique {
		if !r.exists(id) {
			continue
		}
		if err := r.acquire(ctx, id); err != nil {
			return 0, err
		}
		held = append(held, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var updated int64
	for _, id := range held {
		order, ok := r.rows[id]
		if !ok || order.Status != from {
			continue
		}
		order.Status = to
		r.rows[id] = order
		updated++
	}
	return updated, nil
}

// WithinTx выполняет fn в эмулированной транзакции.
func (r *OrderRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.OrderTx) error) (err error) {
	tx := &memoryTx{
		repo:    r,
		held:    make(map[int64]struct{}),
		pending: make(map[int64]domain.OrderStatus),
	}

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (r *OrderRepository) exists(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[id]
	return ok
}

func (r *OrderRepository) rowLock(id int64) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[id] = lock
	}
	return lock
}

func (r *OrderRepository) acquire(ctx context.Context, id int64) error {
	lock := r.rowLock(id)

	var timeout <-chan time.Time
	if r.lockTimeout > 0 {
		timer := time.NewTimer(r.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case lock <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("lock order #%d: %w", id, domain.ErrLockTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: lock order #%d: %w", domain.ErrStorage, id, ctx.Err())
	}
}

func (r *OrderRepository) release(id int64) {
	<-r.rowLock(id)
}

type memoryTx struct {
	repo    *OrderRepository
	held    map[int64]struct{}
	pending map[int64]domain.OrderStatus
}

func (t *memoryTx) FindByIDForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	if !t.repo.exists(id) {
		return domain.Order{}, domain.NewOrderNotFoundError(id)
	}
	if err := t.lock(ctx, id); err != nil {
		return domain.Order{}, err
	}
	return t.read(id)
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	if !t.repo.exists(id) {
		return domain.NewOrderNotFoundError(id)
	}
	if err := t.lock(ctx, id); err != nil {
		return err
	}
	t.pending[id] = status
	return nil
}

func (t *memoryTx) lock(ctx context.Context, id int64) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	if err := t.repo.acquire(ctx, id); err != nil {
		return err
	}
	t.held[id] = struct{}{}
	return nil
}

// read возвращает строку с учётом собственных незакоммиченных изменений.
func (t *memoryTx) read(id int64) (domain.Order, error) {
	t.repo.mu.RLock()
	order, ok := t.repo.rows[id]
	t.repo.mu.RUnlock()
	if !ok {
		return domain.Order{}, domain.NewOrderNotFoundError(id)
	}
	if status, ok := t.pending[id]; ok {
		order.Status = status
	}
	return order, nil
}

func (t *memoryTx) commit() {
	t.repo.mu.Lock()
	for id, status := range t.pending {
		order, ok := t.repo.rows[id]
		if !ok {
			continue
		}
		order.Status = status
		t.repo.rows[id] = order
	}
	t.repo.mu.Unlock()
	t.releaseAll()
}

func (t *memoryTx) rollback() {
	t.pending = map[int64]domain.OrderStatus{}
	t.releaseAll()
}

func (t *memoryTx) releaseAll() {
	for id := range t.held {
		t.repo.release(id)
	}
	t.held = map[int64]struct{}{}
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
