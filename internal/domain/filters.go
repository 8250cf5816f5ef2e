package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// MaxStartHoursLimit bounds the start-time horizon filter to one week.
const MaxStartHoursLimit = 168

// Filters narrows detection. Zero values and nil pointers mean "no filter".
type Filters struct {
	Sport               Sport
	MarketType          MarketType
	MinProfitPercentage *float64
	MinProfit           *float64
	Bookmakers          []Bookmaker
	LiveOnly            *bool
	MaxStartHours       *int
	Bankroll            *float64
}

// Validate reports every invalid field at once.
func (f Filters) Validate() error {
	var errs []string
	if f.MaxStartHours != nil && (*f.MaxStartHours < 0 || *f.MaxStartHours > MaxStartHoursLimit) {
		errs = append(errs, fmt.Sprintf("max_start_hours must be within 0..%d", MaxStartHoursLimit))
	}
	if f.Bankroll != nil && !(*f.Bankroll > 0) {
		errs = append(errs, "bankroll must be positive")
	}
	if f.MinProfit != nil && (*f.MinProfit < 0 || math.IsNaN(*f.MinProfit)) {
		errs = append(errs, "min_profit must not be negative")
	}
	if f.MinProfitPercentage != nil && (math.IsNaN(*f.MinProfitPercentage) || math.IsInf(*f.MinProfitPercentage, 0)) {
		errs = append(errs, "min_profit_percentage must be finite")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFilter, strings.Join(errs, "; "))
	}
	return nil
}

// AllowsBookmaker reports whether b passes the bookmaker allow-list.
func (f Filters) AllowsBookmaker(b Bookmaker) bool {
	return len(f.Bookmakers) == 0 || slices.Contains(f.Bookmakers, b)
}

// Key returns a canonical string identifying the filter set, suitable as a
// cache key. Bankroll is excluded because results are rescaled on read.
func (f Filters) Key() string {
	var b strings.Builder
	b.WriteString("sport=")
	b.WriteString(string(f.Sport))
	b.WriteString("|market=")
	b.WriteString(string(f.MarketType))
	b.WriteString("|minpct=")
	writeFloatPtr(&b, f.MinProfitPercentage)
	b.WriteString("|minprofit=")
	writeFloatPtr(&b, f.MinProfit)
	b.WriteString("|books=")
	books := make([]string, 0, len(f.Bookmakers))
	for _, bm := range f.Bookmakers {
		books = append(books, string(bm))
	}
	slices.Sort(books)
	b.WriteString(strings.Join(books, ","))
	b.WriteString("|live=")
	if f.LiveOnly != nil {
		b.WriteString(strconv.FormatBool(*f.LiveOnly))
	}
	b.WriteString("|hours=")
	if f.MaxStartHours != nil {
		b.WriteString(strconv.Itoa(*f.MaxStartHours))
	}
	return b.String()
}

func writeFloatPtr(b *strings.Builder, v *float64) {
	if v != nil {
		b.WriteString(strconv.FormatFloat(*v, 'f', -1, 64))
	}
}
