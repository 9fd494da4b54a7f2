package kafka

import (
	"context"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
)

// StatusChangePublisher реализует domain.StatusChangePublisher поверх Producer.
// Ключ сообщения — order_id, поэтому события одного заказа попадают в одну партицию.
type StatusChangePublisher struct {
	producer *Producer
	topic    string
}

// NewStatusChangePublisher создаёт publisher; пустой topic заменяется на TopicOrderStatus.
func NewStatusChangePublisher(producer *Producer, topic string) *StatusChangePublisher {
	if topic == "" {
		topic = TopicOrderStatus
	}
	return &StatusChangePublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *StatusChangePublisher) PublishStatusChanged(ctx context.Context, change domain.StatusChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := NewStatusChangedEvent(change)
	return p.producer.PublishEvent(
		p.topic,
		strconv.FormatInt(change.OrderID, 10),
		event,
		sarama.RecordHeader{Key: []byte(HeaderEventID), Value: []byte(event.EventID)},
		sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte(event.EventType)},
	)
}

var _ domain.StatusChangePublisher = (*StatusChangePublisher)(nil)
