package transition

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/metrics"
)

// RetryConfig конфигурация повторов при таймауте блокировки.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию: без повторов.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   1,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrying повторяет Transition, пока строка занята другой транзакцией.
type Retrying struct {
	next    Transitioner
	config  RetryConfig
	logger  *log.Entry
	metrics *metrics.TransitionMetrics
}

// NewRetrying оборачивает Transitioner повторами по ErrLockTimeout.
func NewRetrying(next Transitioner, config RetryConfig, logger *log.Entry, m *metrics.TransitionMetrics) *Retrying {
	if logger == nil {
		logger = log.New().WithField("component", "transition-retry")
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}

	return &Retrying{
		next:    next,
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

func (r *Retrying) Transition(ctx context.Context, orderID int64, requested string) (domain.Order, error) {
	delay := r.config.InitialDelay

	for attempt := 1; ; attempt++ {
		order, err := r.next.Transition(ctx, orderID, requested)
		if err == nil {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt,
				}).Info("Status transition succeeded after retry")
			}
			return order, nil
		}

		if !shouldRetry(err) {
			return domain.Order{}, err
		}
		if attempt >= r.config.MaxAttempts {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"order_id":     orderID,
					"max_attempts": r.config.MaxAttempts,
					"error":        err,
				}).Error("Status transition failed after all retry attempts")
			}
			return domain.Order{}, err
		}

		r.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt,
			"delay":    delay,
			"error":    err,
		}).Warn("Row is locked, retrying status transition")
		if r.metrics != nil {
			r.metrics.RecordRetry()
		}

		if !sleep(ctx, delay) {
			return domain.Order{}, err
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
}

// shouldRetry: повторяем только ожидание блокировки.
func shouldRetry(err error) bool {
	return domain.IsRetryable(err)
}

func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ Transitioner = (*Retrying)(nil)
