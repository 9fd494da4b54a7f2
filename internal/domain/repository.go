package domain

import "context"

// ListFilter задаёт выборку для ListByStatus.
type ListFilter struct {
	// Status пустой: без фильтра.
	Status OrderStatus
	Limit  int
	Offset int
}

// OrderRepository описывает доступ к внешней таблице orders.
// Реализации не кэшируют данные: каждое чтение идёт в источник истины.
type OrderRepository interface {
	// FindByID читает строку без блокировки или возвращает ErrOrderNotFound.
	FindByID(ctx context.Context, id int64) (Order, error)
	// ListByStatus возвращает строки по created_at DESC, order_id DESC.
	ListByStatus(ctx context.Context, filter ListFilter) ([]Order, error)
	// BatchUpdateStatus выполняет один условный UPDATE ... WHERE status = from
	// без предварительного SELECT ... FOR UPDATE и возвращает число изменённых строк.
	BatchUpdateStatus(ctx context.Context, ids []int64, from, to OrderStatus) (int64, error)
	// WithinTx выполняет fn в транзакции READ COMMITTED.
	// Коммит при nil, откат при любой ошибке.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error
}

// OrderTx — операции, доступные только внутри транзакции.
type OrderTx interface {
	// FindByIDForUpdate берёт эксклюзивную блокировку строки до конца транзакции.
	// При превышении ожидания возвращает ErrLockTimeout.
	FindByIDForUpdate(ctx context.Context, id int64) (Order, error)
	// UpdateStatus записывает статус; вызывающий уже держит блокировку строки.
	UpdateStatus(ctx context.Context, id int64, status OrderStatus) error
}
