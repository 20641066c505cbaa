package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"finstat/pkg/core/financial"
	"finstat/pkg/core/render"
	"finstat/pkg/core/store"
)

// Finder loads a stored report.
type Finder interface {
	FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*financial.Report, error)
}

// Handler holds dependencies for report endpoints
type Handler struct {
	reports Finder
	logger  *slog.Logger
}

// NewHandler creates a new report handler
func NewHandler(reports Finder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reports: reports, logger: logger}
}

// HandleReport serves GET /api/report?symbol=&period=&format=json|html|markdown.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	// CORS for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	period := strings.TrimSpace(q.Get("period"))
	if symbol == "" || period == "" {
		http.Error(w, "symbol and period are required", http.StatusBadRequest)
		return
	}

	format := q.Get("format")
	switch format {
	case "", "json", "html", "markdown", "md":
	default:
		http.Error(w, "unknown format "+format, http.StatusBadRequest)
		return
	}

	report, err := h.reports.FindBySymbolAndPeriod(r.Context(), symbol, period)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load report", "symbol", symbol, "period", period, "error", err)
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}

	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			h.logger.Warn("failed to write report", "error", err)
		}
	case "html":
		body, err := render.HTML(report)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(render.Markdown(report)))
	}
}
