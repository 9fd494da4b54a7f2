package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если список brokers не пуст.
// При пустом списке возвращает nil, nil; ошибка подключения не останавливает сервис.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, status events are disabled")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// statusPublisher возвращает nil без producer: движок тогда не публикует события.
func statusPublisher(producer *kafka.Producer, topic string) domain.StatusChangePublisher {
	if producer == nil {
		return nil
	}
	return kafka.NewStatusChangePublisher(producer, topic)
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			out = append(out, broker)
		}
	}
	return out
}
