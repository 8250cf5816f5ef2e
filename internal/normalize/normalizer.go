// Package normalize canonicalises team, event, market and league names so
// that quotes from different bookmakers can be compared.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// separators are tried in order; the first one present splits the event name.
var separators = []string{" vs ", " v ", " - ", " – ", " — ", " x "}

var (
	orgPrefix   = regexp.MustCompile(`(?i)^(FC|AC|AS|SC|CF|United|City)\s+`)
	orgSuffix   = regexp.MustCompile(`(?i)\s+(FC|AC|AS|SC|CF|United|City)$`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalizer rewrites quote names against a lookup table. It is safe for
// concurrent use.
type Normalizer struct {
	table    *Table
	failures atomic.Int64
}

// New creates a Normalizer. A nil table behaves like an empty one.
func New(table *Table) *Normalizer {
	if table == nil {
		table = NewTable(nil)
	}
	return &Normalizer{table: table}
}

// Quote returns a copy of q with normalised event, market and league names.
// It never fails: if normalisation panics the input is returned unchanged
// and the failure is counted.
func (n *Normalizer) Quote(q domain.Quote) (out domain.Quote) {
	defer func() {
		if r := recover(); r != nil {
			n.failures.Add(1)
			out = q
		}
	}()

	out = q
	out.EventName = n.Event(q.EventName)
	out.MarketName = n.Market(q.MarketName)
	if q.League != "" {
		out.League = n.League(q.League)
	}
	return out
}

// Failures returns how many quotes fell back to their original names.
func (n *Normalizer) Failures() int64 {
	return n.failures.Load()
}

// Event normalises a fixture name to "{A} vs {B}" when it splits into
// exactly two teams, and returns the trimmed input otherwise.
func (n *Normalizer) Event(name string) string {
	if name == "" {
		return name
	}
	for _, sep := range separators {
		home, away, ok := strings.Cut(name, sep)
		if !ok {
			continue
		}
		home, away = strings.TrimSpace(home), strings.TrimSpace(away)
		if home == "" || away == "" {
			break
		}
		return fmt.Sprintf("%s vs %s", n.Team(home), n.Team(away))
	}
	return strings.TrimSpace(name)
}

// Team resolves a team alias, or strips organisational tokens and
// punctuation when no alias exists.
func (n *Normalizer) Team(name string) string {
	team := strings.TrimSpace(name)
	if v, ok := n.table.Lookup(team, CategoryTeams, CategoryEsportsTeams); ok {
		return v
	}
	if n.table.IsTarget(team, CategoryTeams, CategoryEsportsTeams) {
		return team
	}
	// Stripping punctuation can expose another token ("Chelsea-FC"), so
	// clean until the name stops changing.
	for range 4 {
		next := cleanTeam(team)
		if next == team {
			break
		}
		team = next
	}
	return team
}

func cleanTeam(team string) string {
	team = orgPrefix.ReplaceAllString(team, "")
	team = orgSuffix.ReplaceAllString(team, "")
	team = punctuation.ReplaceAllString(team, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(team, " "))
}

// Market resolves a market alias from the sport table, then the esports
// table. Unresolved names pass through trimmed.
func (n *Normalizer) Market(name string) string {
	if name == "" {
		return name
	}
	if v, ok := n.table.Lookup(name, CategoryMarkets, CategoryEsportsMarkets); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(name)
}

// League resolves a league alias. Unresolved names pass through trimmed.
func (n *Normalizer) League(name string) string {
	if name == "" {
		return name
	}
	if v, ok := n.table.Lookup(name, CategoryLeagues); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(name)
}
