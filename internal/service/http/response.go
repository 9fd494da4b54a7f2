package httpsvc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
)

type envelope struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Meta    *listMeta `json:"meta,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type listMeta struct {
	Count  int    `json:"count"`
	Filter string `json:"filter"`
}

type orderJSON struct {
	OrderID      int64     `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	TotalAmount  string    `json:"total_amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toOrderJSON(order domain.Order) orderJSON {
	return orderJSON{
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		TotalAmount:  order.FormattedTotal(),
		Status:       string(order.Status),
		CreatedAt:    order.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
