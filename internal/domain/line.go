package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Line is an optional market line such as a handicap or total. It is either
// numeric, textual or absent (the zero value).
type Line struct {
	value   float64
	text    string
	numeric bool
}

// NumericLine returns a numeric line.
func NumericLine(v float64) Line {
	return Line{value: v, numeric: true}
}

// TextLine returns a textual line. Blank text yields the absent line.
func TextLine(s string) Line {
	return Line{text: strings.TrimSpace(s)}
}

// ParseLine parses s as a number when possible and keeps it as text otherwise.
func ParseLine(s string) Line {
	s = strings.TrimSpace(s)
	if s == "" {
		return Line{}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return NumericLine(v)
	}
	return TextLine(s)
}

// IsZero reports whether the line is absent.
func (l Line) IsZero() bool { return !l.numeric && l.text == "" }

// IsNumeric reports whether the line carries a numeric value.
func (l Line) IsNumeric() bool { return l.numeric }

// Value returns the numeric value, or zero for non-numeric lines.
func (l Line) Value() float64 { return l.value }

func (l Line) String() string {
	if l.numeric {
		return FormatLineValue(l.value)
	}
	return l.text
}

// FormatLineValue prints whole numbers with one decimal ("3.0") and keeps
// the shortest representation otherwise ("2.25").
func FormatLineValue(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (l Line) MarshalJSON() ([]byte, error) {
	switch {
	case l.numeric:
		return []byte(strconv.FormatFloat(l.value, 'f', -1, 64)), nil
	case l.text == "":
		return []byte("null"), nil
	default:
		return json.Marshal(l.text)
	}
}

func (l *Line) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = Line{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = ParseLine(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = NumericLine(v)
	return nil
}
