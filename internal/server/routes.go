// -----------------------------------------------------------------------
// Last Modified: Friday, 14th August 2026 10:27:53 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/orders/{orderNumber}", s.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{orderNumber}/images/refresh", s.handleRefreshImages)

	return mux
}
