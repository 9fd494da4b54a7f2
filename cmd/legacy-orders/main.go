package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/app"
)

const (
	envHTTPAddr                = "LEGACY_ORDERS_HTTP_ADDR"
	envGRPCAddr                = "LEGACY_ORDERS_GRPC_ADDR"
	envMetricsAddr             = "LEGACY_ORDERS_METRICS_ADDR"
	envStorageDriver           = "LEGACY_ORDERS_STORAGE_DRIVER"
	envDSN                     = "LEGACY_ORDERS_DSN"
	envLockTimeout             = "LEGACY_ORDERS_LOCK_TIMEOUT"
	envMemorySeedOrders        = "LEGACY_ORDERS_MEMORY_SEED_ORDERS"
	envTransitionRetryAttempts = "LEGACY_ORDERS_TRANSITION_RETRY_ATTEMPTS"
	envKafkaBrokers            = "LEGACY_ORDERS_KAFKA_BROKERS"
	envKafkaTopic              = "LEGACY_ORDERS_KAFKA_TOPIC"
	envLogLevel                = "LEGACY_ORDERS_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", envLogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию и добавляется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	setString := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}

	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envGRPCAddr, &cfg.GRPCAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	setString(envDSN, &cfg.DSN)
	setString(envKafkaBrokers, &cfg.KafkaBrokers)
	setString(envKafkaTopic, &cfg.KafkaTopic)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := lookup(envLockTimeout); ok {
		timeout, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envLockTimeout, err))
		} else {
			cfg.LockTimeout = timeout
		}
	}

	if v, ok := lookup(envMemorySeedOrders); ok {
		n, err := parseInt(v, func(n int) bool { return n >= 0 }, "must be >= 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envMemorySeedOrders, err))
		} else {
			cfg.MemorySeedOrders = n
		}
	}

	if v, ok := lookup(envTransitionRetryAttempts); ok {
		n, err := parseInt(v, func(n int) bool { return n >= 1 }, "must be >= 1")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envTransitionRetryAttempts, err))
		} else {
			cfg.TransitionRetry.MaxAttempts = n
		}
	}

	return cfg, warnings
}

func parseInt(raw string, valid func(int) bool, constraint string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%d %s", value, constraint)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, constraint string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s %s", value, constraint)
	}
	return value, nil
}

func main() {
	envErr := godotenv.Load()

	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Warn("некорректный уровень логирования, используем info")
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.WithError(envErr).Warn("не удалось прочитать .env")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"lock_timeout":   cfg.LockTimeout,
		"kafka_enabled":  cfg.KafkaBrokers != "",
	}).Info("запускаем legacy-orders")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("legacy-orders остановлен")
}
