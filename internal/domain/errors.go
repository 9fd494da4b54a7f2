package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStatusValue — запрошенный статус не входит в перечисление.
	ErrInvalidStatusValue = errors.New("invalid status value")
	// ErrOrderNotFound возвращается, если строки с таким order_id нет.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition — ребра from -> to нет в таблице переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrLockTimeout — не дождались блокировки строки; запрос можно повторить.
	ErrLockTimeout = errors.New("row lock wait timeout")
	// ErrStorage — ошибка подключения, ограничения или иная неожиданная ошибка БД.
	ErrStorage = errors.New("storage failure")
)

// NewOrderNotFoundError добавляет идентификатор заказа к ErrOrderNotFound.
func NewOrderNotFoundError(id int64) error {
	return fmt.Errorf("%w: #%d", ErrOrderNotFound, id)
}

// NewInvalidTransitionError описывает отклонённый переход.
func NewInvalidTransitionError(from, to OrderStatus) error {
	return fmt.Errorf("%w from '%s' to '%s'", ErrInvalidTransition, from, to)
}

// IsClientError возвращает true для ошибок, вызванных входными данными клиента.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidStatusValue) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsRetryable сообщает, можно ли повторить операцию после паузы.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
