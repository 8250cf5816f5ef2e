package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// writeJSON marshals v and writes it with the given status. Marshal failures
// become a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit (default 50, max 500), offset, since, until and
// sport. Malformed values are reported, not ignored.
func parseListOpts(q url.Values) (domain.ListOpts, error) {
	opts := domain.ListOpts{Limit: 50}
	var errs []string

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, "limit must be a positive integer")
		} else {
			opts.Limit = min(n, 500)
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, "offset must be a non-negative integer")
		} else {
			opts.Offset = n
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		if v := q.Get(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				errs = append(errs, p.name+" must be an RFC 3339 timestamp")
				continue
			}
			*p.dst = &t
		}
	}
	if v := q.Get("sport"); v != "" {
		s := domain.ParseSport(v)
		if s == domain.SportUnknown {
			errs = append(errs, fmt.Sprintf("unknown sport %q", v))
		}
		opts.Sport = s
	}

	if len(errs) > 0 {
		return opts, errors.New(strings.Join(errs, "; "))
	}
	return opts, nil
}

// parseFilters builds detection filters from query parameters. Every error
// wraps domain.ErrInvalidFilter.
func parseFilters(q url.Values) (domain.Filters, error) {
	var f domain.Filters
	var errs []string

	if v := q.Get("sport"); v != "" {
		f.Sport = domain.ParseSport(v)
		if f.Sport == domain.SportUnknown {
			errs = append(errs, fmt.Sprintf("unknown sport %q", v))
		}
	}
	if v := q.Get("market_type"); v != "" {
		t, ok := domain.ParseMarketType(v)
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown market_type %q", v))
		}
		f.MarketType = t
	}

	pct := q.Get("min_arb_percentage")
	if pct == "" {
		pct = q.Get("min_profit_percentage")
	}
	f.MinProfitPercentage = parseFloat(pct, "min_arb_percentage", &errs)
	if f.MinProfitPercentage != nil && *f.MinProfitPercentage < 0 {
		errs = append(errs, "min_arb_percentage must not be negative")
	}
	f.MinProfit = parseFloat(q.Get("min_profit"), "min_profit", &errs)
	f.Bankroll = parseFloat(q.Get("bankroll"), "bankroll", &errs)

	for _, raw := range q["bookmakers"] {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name == "" {
				continue
			}
			b := domain.ParseBookmaker(name)
			if b == domain.BookmakerUnknown {
				errs = append(errs, fmt.Sprintf("unknown bookmaker %q", name))
				continue
			}
			f.Bookmakers = append(f.Bookmakers, b)
		}
	}

	if v := q.Get("live_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, "live_only must be a boolean")
		} else {
			f.LiveOnly = &b
		}
	}
	if v := q.Get("max_start_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "max_start_hours must be an integer")
		} else {
			f.MaxStartHours = &n
		}
	}

	if len(errs) > 0 {
		return f, fmt.Errorf("%w: %s", domain.ErrInvalidFilter, strings.Join(errs, "; "))
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func parseFloat(v, name string, errs *[]string) *float64 {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, name+" must be a number")
		return nil
	}
	return &n
}

// parseBool reads an optional boolean, falling back to def.
func parseBool(q url.Values, name string, def bool) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidFilter, name)
	}
	return b, nil
}
