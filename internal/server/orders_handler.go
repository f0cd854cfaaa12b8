package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/storage"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      common.GetVersion(),
		"organization": s.app.Config.Organization,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// handleListOrders filters orders by tag, status, ship-date range, and
// search text, returning rows joined with tag and customer data
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.OrderFilter{
		Organization: s.app.Config.Organization,
		TagCode:      q.Get("tag"),
		Status:       q.Get("status"),
		Search:       q.Get("q"),
	}
	if v := q.Get("ship_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.ShipFrom = &t
		} else {
			writeError(w, http.StatusBadRequest, "invalid ship_from, expected YYYY-MM-DD")
			return
		}
	}
	if v := q.Get("ship_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.ShipTo = &t
		} else {
			writeError(w, http.StatusBadRequest, "invalid ship_to, expected YYYY-MM-DD")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	orders, err := storage.FilterOrders(r.Context(), s.app.DB, filter)
	if err != nil {
		s.app.Logger.Error().Err(err).Msg("Order query failed")
		writeError(w, http.StatusInternalServerError, "order query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := r.PathValue("orderNumber")

	order, err := storage.GetOrder(r.Context(), s.app.DB, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.app.Logger.Error().Err(err).Msg("Order lookup failed")
		writeError(w, http.StatusInternalServerError, "order lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// handleRefreshImages is the reactive freshness path: a consumer holding a
// broken signed URL requests regeneration keyed on the order
func (s *Server) handleRefreshImages(w http.ResponseWriter, r *http.Request) {
	if s.app.Images == nil {
		writeError(w, http.StatusServiceUnavailable, "image refresh not configured")
		return
	}

	orderNumber := r.PathValue("orderNumber")

	order, err := s.app.Images.RefreshByOrderNumber(r.Context(), orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		s.app.Logger.Error().Str("order_number", orderNumber).Err(err).Msg("Image refresh failed")
		writeError(w, http.StatusInternalServerError, "image refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
