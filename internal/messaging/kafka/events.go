package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// TopicOrderStatus — топик по умолчанию для уведомлений о смене статуса.
const TopicOrderStatus = "legacy.orders.status"

// Kafka headers
const (
	HeaderEventID   = "x-event-id"
	HeaderEventType = "x-event-type"
)

// StatusChangedEvent — уведомление о закоммиченной смене статуса.
// Потребители не должны использовать его для координации: источник истины здесь таблица orders.
type StatusChangedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	OrderID    int64     `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

// NewStatusChangedEvent создает событие с новым event_id
func NewStatusChangedEvent(change domain.StatusChange) *StatusChangedEvent {
	return &StatusChangedEvent{
		EventID:    uuid.NewString(),
		EventType:  EventTypeOrderStatusChanged,
		OrderID:    change.OrderID,
		FromStatus: string(change.From),
		ToStatus:   string(change.To),
		ChangedAt:  change.ChangedAt,
	}
}
