// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultApplied     = "applied"
	ResultRejected    = "rejected"
	ResultNotFound    = "not_found"
	ResultInvalid     = "invalid_status"
	ResultLockTimeout = "lock_timeout"
	ResultStorage     = "storage_error"
)

// Виды операций для гистограммы длительности.
const (
	OperationTransition = "transition"
	OperationBatch      = "batch"
)

// TransitionMetrics содержит метрики смены статусов и чтения заказов.
type TransitionMetrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge

	batchUpdated prometheus.Counter
	batchSkipped prometheus.Counter

	retries         prometheus.Counter
	publishFailures prometheus.Counter

	listings *prometheus.CounterVec
}

// NewTransitionMetrics регистрирует метрики в DefaultRegisterer.
func NewTransitionMetrics() *TransitionMetrics {
	return NewTransitionMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewTransitionMetricsWithRegisterer регистрирует метрики в заданном реестре.
func NewTransitionMetricsWithRegisterer(registerer prometheus.Registerer) *TransitionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &TransitionMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "legacy_orders_transitions_total",
			Help: "Total number of status transition attempts by result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "legacy_orders_transition_duration_seconds",
			Help:    "Duration of status transitions including row lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "legacy_orders_transitions_in_flight",
			Help: "Number of status transitions currently holding or waiting for a row lock",
		}),
		batchUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "legacy_orders_batch_rows_updated_total",
			Help: "Total number of rows moved by batch transitions",
		}),
		batchSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "legacy_orders_batch_rows_skipped_total",
			Help: "Total number of requested ids a batch transition left untouched",
		}),
		retries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "legacy_orders_transition_retries_total",
			Help: "Total number of transition retries after a lock wait timeout",
		}),
		publishFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "legacy_orders_status_events_failed_total",
			Help: "Total number of status change events that could not be published",
		}),
		listings: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "legacy_orders_listings_total",
			Help: "Total number of order listings by applied filter",
		}, []string{"filter"}),
	}
}

// RecordTransition учитывает попытку перехода и её длительность.
func (m *TransitionMetrics) RecordTransition(operation, result string, duration time.Duration) {
	m.transitions.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// TransitionStarted увеличивает количество активных переходов.
func (m *TransitionMetrics) TransitionStarted() {
	m.inFlight.Inc()
}

// TransitionFinished уменьшает количество активных переходов.
func (m *TransitionMetrics) TransitionFinished() {
	m.inFlight.Dec()
}

// RecordBatch учитывает результат пакетного перехода.
func (m *TransitionMetrics) RecordBatch(updated, skipped int64) {
	m.batchUpdated.Add(float64(updated))
	m.batchSkipped.Add(float64(skipped))
}

func (m *TransitionMetrics) RecordRetry() {
	m.retries.Inc()
}

func (m *TransitionMetrics) RecordPublishFailure() {
	m.publishFailures.Inc()
}

// RecordListing учитывает выдачу списка; filter — применённый фильтр или "all".
func (m *TransitionMetrics) RecordListing(filter string) {
	m.listings.WithLabelValues(filter).Inc()
}
