package server

import (
	"net/http"
)

// handleRecommendations handles GET /api/v1/market/recommendations.
//
// Plain GETs serve only the cached screen outcome and stay side-effect
// free; ?refresh=true runs a screen, which itself serves the cached
// outcome while it is inside the TTL window.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		recs, err := s.app.MarketService.ScreenMarketStocks(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Market screen failed: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, recs)
		return
	}

	recs, ok := s.app.MarketService.CachedRecommendations()
	if !ok {
		WriteError(w, http.StatusNotFound, "No cached recommendations; pass refresh=true or POST /api/v1/market/screen")
		return
	}
	WriteJSON(w, http.StatusOK, recs)
}

// handleScreen handles POST /api/v1/market/screen.
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	recs, err := s.app.MarketService.ScreenMarketStocks(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Market screen failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, recs)
}
