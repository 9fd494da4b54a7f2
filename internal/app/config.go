package app

import (
	"time"

	"github.com/vladislavdragonenkov/legacy-orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/transition"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverMySQL    = "mysql"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver string
	// DSN обязателен для postgres и mysql.
	DSN string
	// LockTimeout ограничивает ожидание блокировки строки в транзакции.
	LockTimeout time.Duration
	// MemorySeedOrders заполняет in-memory таблицу заказами в статусе pending.
	MemorySeedOrders int

	TransitionRetry transition.RetryConfig

	// KafkaBrokers пустой: публикация событий выключена.
	KafkaBrokers string
	KafkaTopic   string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":50051",
		MetricsAddr:     ":9090",
		StorageDriver:   StorageDriverMemory,
		LockTimeout:     5 * time.Second,
		TransitionRetry: transition.DefaultRetryConfig(),
		KafkaTopic:      kafka.TopicOrderStatus,
	}
}
