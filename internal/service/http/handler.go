package httpsvc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/query"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/transition"
)

const (
	msgStatusUpdated   = "Order status updated successfully"
	msgUpdateFailed    = "Failed to update order status"
	msgBatchApplied    = "Batch status update applied"
	msgBatchFailed     = "Failed to apply batch status update"
	msgInvalidOrderID  = "invalid order id"
	msgInvalidBody     = "invalid request body"
	msgListFailed      = "Failed to list orders"
	lockRetryAfterSecs = "1"
)

// Lister — чтение списка заказов.
type Lister interface {
	List(ctx context.Context, statusFilter string) (query.Result, error)
}

// Handler обслуживает HTTP-маршруты заказов.
type Handler struct {
	transitioner transition.Transitioner
	batch        transition.BatchTransitioner
	lister       Lister
	logger       *log.Entry
}

// NewHandler создаёт Handler.
func NewHandler(transitioner transition.Transitioner, batch transition.BatchTransitioner, lister Lister, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{
		transitioner: transitioner,
		batch:        batch,
		lister:       lister,
		logger:       logger,
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type batchStatusRequest struct {
	OrderIDs   []int64 `json:"order_ids"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
}

type batchStatusResult struct {
	Requested int   `json:"requested"`
	Updated   int64 `json:"updated"`
}

func (h *Handler) listJSON(w http.ResponseWriter, r *http.Request) {
	result, err := h.lister.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Message: msgListFailed,
			Error:   err.Error(),
		})
		return
	}

	data := make([]orderJSON, 0, len(result.Orders))
	for _, order := range result.Orders {
		data = append(data, toOrderJSON(order))
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta: &listMeta{
			Count:  len(data),
			Filter: result.FilterLabel(),
		},
	})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: msgInvalidOrderID})
		return
	}

	requested, err := decodeStatus(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: msgInvalidBody})
		return
	}

	order, err := h.transitioner.Transition(r.Context(), orderID, requested)
	if err != nil {
		h.writeError(w, msgUpdateFailed, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: msgStatusUpdated,
		Data:    toOrderJSON(order),
	})
}

func (h *Handler) batchStatus(w http.ResponseWriter, r *http.Request) {
	var req batchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: msgInvalidBody})
		return
	}

	updated, err := h.batch.BatchTransition(r.Context(), req.OrderIDs, req.FromStatus, req.ToStatus)
	if err != nil {
		h.writeError(w, msgBatchFailed, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: msgBatchApplied,
		Data: batchStatusResult{
			Requested: len(req.OrderIDs),
			Updated:   updated,
		},
	})
}

// writeError сводит таксономию ошибок к HTTP-кодам.
func (h *Handler) writeError(w http.ResponseWriter, failureMessage string, err error) {
	switch {
	case domain.IsClientError(err), errors.Is(err, transition.ErrBatchTooLarge):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: err.Error()})
	case domain.IsRetryable(err):
		w.Header().Set("Retry-After", lockRetryAfterSecs)
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Message: failureMessage,
			Error:   err.Error(),
		})
	default:
		h.logger.WithError(err).Error(failureMessage)
		writeJSON(w, http.StatusInternalServerError, envelope{
			Message: failureMessage,
			Error:   err.Error(),
		})
	}
}

// decodeStatus принимает JSON и form-urlencoded: веб-форма шлёт второй вариант.
func decodeStatus(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		return r.FormValue("status"), nil
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", err
	}
	return req.Status, nil
}
