package domain

import (
	"context"
	"time"
)

// StatusChange описывает закоммиченный переход статуса.
type StatusChange struct {
	OrderID   int64
	From      OrderStatus
	To        OrderStatus
	ChangedAt time.Time
}

// StatusChangePublisher уведомляет внешних потребителей о переходах.
// Вызывается после коммита; ошибка публикации не откатывает переход.
type StatusChangePublisher interface {
	PublishStatusChanged(ctx context.Context, change StatusChange) error
}
