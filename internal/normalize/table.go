package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Category names one lookup table inside the normalisation map file.
type Category string

const (
	CategoryTeams          Category = "teams"
	CategoryEsportsTeams   Category = "esports_teams"
	CategoryMarkets        Category = "markets"
	CategoryEsportsMarkets Category = "esports_markets"
	CategoryLeagues        Category = "leagues"
)

// Table is an immutable set of exact-match alias tables. The zero value is
// an empty table in which every lookup misses.
type Table struct {
	entries map[Category]map[string]string
	targets map[Category]map[string]struct{}
}

// NewTable copies the given mappings into a new Table.
func NewTable(src map[Category]map[string]string) *Table {
	t := &Table{
		entries: make(map[Category]map[string]string, len(src)),
		targets: make(map[Category]map[string]struct{}, len(src)),
	}
	for cat, m := range src {
		cp := make(map[string]string, len(m))
		tg := make(map[string]struct{}, len(m))
		for k, v := range m {
			cp[k] = v
			tg[v] = struct{}{}
		}
		t.entries[cat] = cp
		t.targets[cat] = tg
	}
	return t
}

// LoadTable reads a JSON normalisation map of the form
// {"teams": {"Man Utd": "Manchester United"}, "markets": {...}, ...}.
// A missing file is not an error: the table is empty and a warning is
// logged. Unknown top-level keys are ignored.
func LoadTable(path string, logger *slog.Logger) (*Table, error) {
	if path == "" {
		return NewTable(nil), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("normalize: map file not found, using empty table",
			slog.String("path", path),
		)
		return NewTable(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("normalize: read %s: %w", path, err)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("normalize: parse %s: %w", path, err)
	}

	src := make(map[Category]map[string]string, len(raw))
	for k, v := range raw {
		src[Category(k)] = v
	}
	t := NewTable(src)
	logger.Info("normalize: map loaded",
		slog.String("path", path),
		slog.Int("teams", t.Len(CategoryTeams)+t.Len(CategoryEsportsTeams)),
		slog.Int("markets", t.Len(CategoryMarkets)+t.Len(CategoryEsportsMarkets)),
		slog.Int("leagues", t.Len(CategoryLeagues)),
	)
	return t, nil
}

// Lookup returns the alias target for key in the first category that has it.
func (t *Table) Lookup(key string, cats ...Category) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, c := range cats {
		if v, ok := t.entries[c][key]; ok {
			return v, true
		}
	}
	return "", false
}

// IsTarget reports whether value is already the canonical form of some
// alias in one of the categories.
func (t *Table) IsTarget(value string, cats ...Category) bool {
	if t == nil {
		return false
	}
	for _, c := range cats {
		if _, ok := t.targets[c][value]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of entries in a category.
func (t *Table) Len(c Category) int {
	if t == nil {
		return 0
	}
	return len(t.entries[c])
}
