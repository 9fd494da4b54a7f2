// Package transition применяет переходы статусов заказа под блокировкой строки.
package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/metrics"
)

// MaxBatchSize ограничивает число уникальных id в одном пакетном переходе.
const MaxBatchSize = 1000

// ErrBatchTooLarge возвращается, если пакет превышает MaxBatchSize.
var ErrBatchTooLarge = errors.New("batch is too large")

// Transitioner меняет статус одного заказа.
type Transitioner interface {
	Transition(ctx context.Context, orderID int64, requested string) (domain.Order, error)
}

// BatchTransitioner переводит группу заказов из одного статуса в другой.
type BatchTransitioner interface {
	BatchTransition(ctx context.Context, ids []int64, from, to string) (int64, error)
}

// Engine — пессимистичная реализация: SELECT ... FOR UPDATE, проверка, UPDATE, COMMIT.
type Engine struct {
	repo      domain.OrderRepository
	logger    *log.Entry
	metrics   *metrics.TransitionMetrics
	publisher domain.StatusChangePublisher
	now       func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics включает метрики.
func WithMetrics(m *metrics.TransitionMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithPublisher подключает уведомление о закоммиченных переходах.
func WithPublisher(publisher domain.StatusChangePublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithClock подменяет источник времени для StatusChange.ChangedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine создаёт движок переходов поверх репозитория.
func NewEngine(repo domain.OrderRepository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		logger: log.New().WithField("component", "transition-engine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transition переводит заказ в запрошенный статус.
// Решение принимается по статусу, прочитанному под блокировкой строки,
// поэтому конкурентные переходы одной строки строго упорядочены.
func (e *Engine) Transition(ctx context.Context, orderID int64, requested string) (domain.Order, error) {
	started := time.Now()

	target, err := domain.ParseOrderStatus(requested)
	if err != nil {
		e.finish(metrics.OperationTransition, started, err)
		e.logger.WithFields(log.Fields{
			"order_id":  orderID,
			"requested": requested,
		}).Warn("Rejected unknown status value")
		return domain.Order{}, err
	}

	if e.metrics != nil {
		e.metrics.TransitionStarted()
		defer e.metrics.TransitionFinished()
	}

	var (
		updated  domain.Order
		previous domain.OrderStatus
	)
	err = e.repo.WithinTx(ctx, func(ctx context.Context, tx domain.OrderTx) error {
		current, err := tx.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := domain.ValidateTransition(current.Status, target); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, orderID, target); err != nil {
			return err
		}

		previous = current.Status
		current.Status = target
		updated = current
		return nil
	})
	if err != nil {
		err = classify(err)
		e.finish(metrics.OperationTransition, started, err)
		e.logFailure(orderID, requested, err)
		return domain.Order{}, err
	}

	e.finish(metrics.OperationTransition, started, nil)
	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     previous,
		"to":       target,
	}).Info("Order status updated")

	e.publish(ctx, domain.StatusChange{
		OrderID:   orderID,
		From:      previous,
		To:        target,
		ChangedAt: e.now(),
	})

	return updated, nil
}

// BatchTransition выполняет один условный UPDATE для строк, находящихся в статусе from.
// Результат носит справочный характер: строки в другом статусе или отсутствующие
// просто не попадают в счётчик, ошибок по отдельным строкам нет.
func (e *Engine) BatchTransition(ctx context.Context, ids []int64, from, to string) (int64, error) {
	started := time.Now()

	fromStatus, err := domain.ParseOrderStatus(from)
	if err != nil {
		e.finish(metrics.OperationBatch, started, err)
		return 0, err
	}
	toStatus, err := domain.ParseOrderStatus(to)
	if err != nil {
		e.finish(metrics.OperationBatch, started, err)
		return 0, err
	}
	if err := domain.ValidateTransition(fromStatus, toStatus); err != nil {
		e.finish(metrics.OperationBatch, started, err)
		return 0, err
	}

	unique := uniqueIDs(ids)
	if len(unique) > MaxBatchSize {
		return 0, fmt.Errorf("%w: %d ids, limit %d", ErrBatchTooLarge, len(unique), MaxBatchSize)
	}
	if len(unique) == 0 {
		return 0, nil
	}

	updated, err := e.repo.BatchUpdateStatus(ctx, unique, fromStatus, toStatus)
	if err != nil {
		err = classify(err)
		e.finish(metrics.OperationBatch, started, err)
		e.logger.WithFields(log.Fields{
			"from":  fromStatus,
			"to":    toStatus,
			"count": len(unique),
			"error": err,
		}).Error("Batch status update failed")
		return 0, err
	}

	e.finish(metrics.OperationBatch, started, nil)
	if e.metrics != nil {
		e.metrics.RecordBatch(updated, int64(len(unique))-updated)
	}
	e.logger.WithFields(log.Fields{
		"from":      fromStatus,
		"to":        toStatus,
		"requested": len(unique),
		"updated":   updated,
	}).Info("Batch status update applied")

	return updated, nil
}

func (e *Engine) publish(ctx context.Context, change domain.StatusChange) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishStatusChanged(ctx, change); err != nil {
		if e.metrics != nil {
			e.metrics.RecordPublishFailure()
		}
		e.logger.WithFields(log.Fields{
			"order_id": change.OrderID,
			"from":     change.From,
			"to":       change.To,
			"error":    err,
		}).Warn("Failed to publish status change")
	}
}

func (e *Engine) finish(operation string, started time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordTransition(operation, resultLabel(err), time.Since(started))
}

func (e *Engine) logFailure(orderID int64, requested string, err error) {
	entry := e.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"requested": requested,
		"error":     err,
	})
	switch {
	case domain.IsClientError(err):
		entry.Info("Status transition rejected")
	case domain.IsRetryable(err):
		entry.Warn("Status transition timed out waiting for row lock")
	default:
		entry.Error("Status transition failed")
	}
}

// classify гарантирует, что наружу уходят только ошибки из таксономии домена.
func classify(err error) error {
	if domain.IsClientError(err) || domain.IsRetryable(err) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultApplied
	case errors.Is(err, domain.ErrInvalidStatusValue):
		return metrics.ResultInvalid
	case errors.Is(err, domain.ErrOrderNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return metrics.ResultRejected
	case errors.Is(err, domain.ErrLockTimeout):
		return metrics.ResultLockTimeout
	default:
		return metrics.ResultStorage
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var (
	_ Transitioner      = (*Engine)(nil)
	_ BatchTransitioner = (*Engine)(nil)
)
