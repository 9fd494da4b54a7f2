package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус заказа в legacy-таблице orders.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан внешней системой и ждёт обработки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid — оплата подтверждена.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusCancelled — заказ отменён (терминальный статус).
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusProcessing — заказ передан в обработку без предварительной оплаты.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted — заказ исполнен (терминальный статус).
	OrderStatusCompleted OrderStatus = "completed"
)

// Order отражает одну строку внешней таблицы orders.
// Схема принадлежит внешней системе: updated_at и version в ней нет.
type Order struct {
	// ID — order_id, назначается внешней системой и не меняется.
	ID int64
	// CustomerName выводится как есть, без валидации.
	CustomerName string
	// TotalAmount — decimal(*,2).
	TotalAmount decimal.Decimal
	// Status меняется только через движок переходов.
	Status OrderStatus
	// CreatedAt выставляется при вставке строки и больше не обновляется.
	CreatedAt time.Time
}

// FormattedTotal возвращает сумму с двумя знаками после запятой.
func (o Order) FormattedTotal() string {
	return o.TotalAmount.StringFixed(2)
}

// AllOrderStatuses возвращает все допустимые статусы в порядке объявления.
func AllOrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus проверяет, что значение входит в закрытый набор статусов.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(value))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatusValue, value)
	}
	return status, nil
}

// IsValid сообщает, входит ли статус в перечисление.
func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal возвращает true для статусов без исходящих переходов.
func (s OrderStatus) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo проверяет наличие ребра s -> next в таблице переходов.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	_, ok := transitions[s][next]
	return ok
}

// AllowedTransitions возвращает копию списка допустимых следующих статусов.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	out := make([]OrderStatus, 0, len(transitions[s]))
	for _, candidate := range orderStatuses {
		if s.CanTransitionTo(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func (s OrderStatus) String() string {
	return string(s)
}
