package handler

import (
	"net/http"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// ListSports returns the supported sports.
// GET /api/sports
func ListSports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sports": domain.KnownSports()})
}

// ListMarkets returns the supported market types.
// GET /api/markets
func ListMarkets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"markets": domain.KnownMarketTypes()})
}

// ListBookmakers returns the supported bookmakers.
// GET /api/bookmakers
func ListBookmakers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"bookmakers": domain.KnownBookmakers()})
}
