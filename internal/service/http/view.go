package httpsvc

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/query"
)

const createdLayout = "Jan 02, 2006 15:04"

//go:embed templates/orders.html
var templateFS embed.FS

var ordersTemplate = template.Must(template.ParseFS(templateFS, "templates/orders.html"))

type listPage struct {
	Path          string
	Limit         int
	Statuses      []statusOption
	CurrentStatus string
	Orders        []orderRow
}

type statusOption struct {
	Value    string
	Label    string
	Selected bool
}

type orderRow struct {
	ID          int64
	Customer    string
	Amount      string
	Status      string
	StatusLabel string
	Created     string
}

func (h *Handler) listPage(w http.ResponseWriter, r *http.Request) {
	result, err := h.lister.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.WithError(err).Error(msgListFailed)
		http.Error(w, msgListFailed, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := ordersTemplate.Execute(&buf, buildListPage(r.URL.Path, result)); err != nil {
		h.logger.WithError(err).Error("Failed to render orders page")
		http.Error(w, msgListFailed, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func buildListPage(path string, result query.Result) listPage {
	page := listPage{
		Path:          path,
		Limit:         query.ListLimit,
		CurrentStatus: string(result.Filter),
	}

	for _, status := range domain.AllOrderStatuses() {
		page.Statuses = append(page.Statuses, statusOption{
			Value:    string(status),
			Label:    capitalize(string(status)),
			Selected: status == result.Filter,
		})
	}

	for _, order := range result.Orders {
		page.Orders = append(page.Orders, orderRow{
			ID:          order.ID,
			Customer:    order.CustomerName,
			Amount:      groupThousands(order.FormattedTotal()),
			Status:      string(order.Status),
			StatusLabel: capitalize(string(order.Status)),
			Created:     order.CreatedAt.Format(createdLayout),
		})
	}

	return page
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// groupThousands превращает "1234567.50" в "1,234,567.50".
func groupThousands(amount string) string {
	sign := ""
	if strings.HasPrefix(amount, "-") {
		sign, amount = "-", amount[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(amount, ".")
	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := sign + b.String()
	if hasFrac {
		out += "." + fracPart
	}
	return out
}
