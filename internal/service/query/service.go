// Package query отдаёт списки заказов без блокировок.
package query

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/metrics"
)

// ListLimit — максимальное число строк в одной выдаче.
const ListLimit = 50

// FilterAll — значение фильтра в ответе, когда выборка не отфильтрована.
const FilterAll = "all"

// Result — выдача списка и фактически применённый фильтр.
type Result struct {
	Orders []domain.Order
	// Filter пустой, если фильтр не применялся.
	Filter domain.OrderStatus
}

// FilterLabel возвращает применённый фильтр или "all".
func (r Result) FilterLabel() string {
	if r.Filter == "" {
		return FilterAll
	}
	return string(r.Filter)
}

// Service читает заказы из репозитория.
type Service struct {
	repo    domain.OrderRepository
	logger  *log.Entry
	metrics *metrics.TransitionMetrics
}

// NewService создаёт сервис; m может быть nil.
func NewService(repo domain.OrderRepository, logger *log.Entry, m *metrics.TransitionMetrics) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-query")
	}
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: m,
	}
}

// List возвращает до ListLimit последних заказов.
// Неизвестный или пустой фильтр означает выборку без фильтра, а не ошибку.
func (s *Service) List(ctx context.Context, statusFilter string) (Result, error) {
	var filter domain.OrderStatus
	if strings.TrimSpace(statusFilter) != "" {
		status, err := domain.ParseOrderStatus(statusFilter)
		if err != nil {
			s.logger.WithField("status", statusFilter).Debug("Ignoring unknown status filter")
		} else {
			filter = status
		}
	}

	orders, err := s.repo.ListByStatus(ctx, domain.ListFilter{
		Status: filter,
		Limit:  ListLimit,
	})
	if err != nil {
		s.logger.WithFields(log.Fields{
			"status": filter,
			"error":  err,
		}).Error("Failed to list orders")
		return Result{}, err
	}

	result := Result{Orders: orders, Filter: filter}
	if s.metrics != nil {
		s.metrics.RecordListing(result.FilterLabel())
	}
	return result, nil
}
