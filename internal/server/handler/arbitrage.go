package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/cache"
	"github.com/alanyoungcy/oddsarb/internal/domain"
	"github.com/alanyoungcy/oddsarb/internal/match"
	"github.com/alanyoungcy/oddsarb/internal/service"
	"github.com/alanyoungcy/oddsarb/internal/source"
)

// Scanner runs an unrecorded detection cycle.
type Scanner interface {
	Scan(ctx context.Context, f domain.Filters) (service.CycleReport, error)
}

// ResultCache serves detection results computed recently.
type ResultCache interface {
	Get(ctx context.Context, f domain.Filters, compute cache.ComputeFunc) (cache.Result, error)
}

// ArbHandler serves the arbitrage endpoints.
type ArbHandler struct {
	scanner Scanner
	cache   ResultCache
	store   domain.OpportunityStore
	logger  *slog.Logger
}

// NewArbHandler creates an ArbHandler. rc and store may be nil: without a
// cache every request runs a fresh scan, without a store the history
// endpoints answer 503.
func NewArbHandler(scanner Scanner, rc ResultCache, store domain.OpportunityStore, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{scanner: scanner, cache: rc, store: store, logger: logger}
}

type arbsResponse struct {
	Arbitrages []domain.ArbitrageOpportunity `json:"arbitrages"`
	TotalFound int                           `json:"total_found"`
	Cached     bool                          `json:"cached"`
	Stale      bool                          `json:"stale,omitempty"`
	ComputedAt time.Time                     `json:"computed_at"`
	Summary    *service.Summary              `json:"summary,omitempty"`
	Sources    []source.Result               `json:"sources,omitempty"`
	Matching   *match.Stats                  `json:"matching_stats,omitempty"`
}

// List returns opportunities matching the query filters.
// GET /api/arbs?sport=&market_type=&min_arb_percentage=&min_profit=&bookmakers=&live_only=&max_start_hours=&bankroll=&use_cache=
func (h *ArbHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilters(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	useCache, err := parseBool(q, "use_cache", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.fetch(r.Context(), f, useCache)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Live returns live opportunities, always freshly computed.
// GET /api/arbs/live
func (h *ArbHandler) Live(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	live := true
	f.LiveOnly = &live

	resp, err := h.fetch(r.Context(), f, false)
	if err != nil {
		h.fail(w, r, "live", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Best returns the top opportunities by profit percentage. min_profit
// defaults to 20 and limit to 10 (max 50).
// GET /api/arbs/best?limit=
func (h *ArbHandler) Best(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilters(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be within 1..50")
			return
		}
		limit = n
	}
	if f.MinProfit == nil {
		minProfit := 20.0
		f.MinProfit = &minProfit
	}

	resp, err := h.fetch(r.Context(), f, true)
	if err != nil {
		h.fail(w, r, "best", err)
		return
	}
	if len(resp.Arbitrages) > limit {
		resp.Arbitrages = resp.Arbitrages[:limit]
		resp.TotalFound = limit
	}
	writeJSON(w, http.StatusOK, resp)
}

// ForEvent returns opportunities whose event name contains {name},
// case-insensitively.
// GET /api/events/{name}/arbs
func (h *ArbHandler) ForEvent(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing event name")
		return
	}
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.fetch(r.Context(), f, true)
	if err != nil {
		h.fail(w, r, "for_event", err)
		return
	}
	needle := strings.ToLower(name)
	matched := make([]domain.ArbitrageOpportunity, 0)
	for _, o := range resp.Arbitrages {
		if strings.Contains(strings.ToLower(o.EventName), needle) {
			matched = append(matched, o)
		}
	}
	if len(matched) == 0 {
		writeError(w, http.StatusNotFound, "no arbitrages found for event: "+name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_name":  name,
		"arbitrages":  matched,
		"total_found": len(matched),
	})
}

// Recent lists stored opportunities, newest first.
// GET /api/arbs/recent?limit=&offset=&since=&until=&sport=
func (h *ArbHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity history is not configured")
		return
	}
	opts, err := parseListOpts(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opps, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.fail(w, r, "recent", err)
		return
	}
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"arbitrages": opps,
		"limit":      opts.Limit,
		"offset":     opts.Offset,
	})
}

// Get returns one stored opportunity.
// GET /api/arbs/{id}
func (h *ArbHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity history is not configured")
		return
	}
	opp, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "arbitrage not found")
			return
		}
		h.fail(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

func (h *ArbHandler) fetch(ctx context.Context, f domain.Filters, useCache bool) (arbsResponse, error) {
	if useCache && h.cache != nil {
		res, err := h.cache.Get(ctx, f, h.compute)
		if err != nil {
			return arbsResponse{}, err
		}
		return arbsResponse{
			Arbitrages: res.Opportunities,
			TotalFound: len(res.Opportunities),
			Cached:     res.Hit,
			Stale:      res.Stale,
			ComputedAt: res.ComputedAt,
		}, nil
	}

	report, err := h.scanner.Scan(ctx, f)
	if err != nil {
		return arbsResponse{}, err
	}
	return arbsResponse{
		Arbitrages: report.Opportunities,
		TotalFound: len(report.Opportunities),
		ComputedAt: report.FinishedAt,
		Summary:    &report.Summary,
		Sources:    report.Sources,
		Matching:   &report.Matching,
	}, nil
}

func (h *ArbHandler) compute(ctx context.Context, f domain.Filters) ([]domain.ArbitrageOpportunity, bool, error) {
	report, err := h.scanner.Scan(ctx, f)
	if err != nil {
		return nil, false, err
	}
	return report.Opportunities, report.Live, nil
}

func (h *ArbHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: arbitrage request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to detect arbitrages")
}
