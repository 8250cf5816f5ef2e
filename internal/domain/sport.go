package domain

import (
	"slices"
	"strings"
)

// Sport is the closed set of sports the engine understands.
type Sport string

const (
	SportFootball   Sport = "football"
	SportBasketball Sport = "basketball"
	SportTennis     Sport = "tennis"
	SportCricket    Sport = "cricket"
	SportBaseball   Sport = "baseball"
	SportHockey     Sport = "hockey"
	SportEsports    Sport = "esports"
	SportPUBG       Sport = "pubg"
	SportCSGO       Sport = "csgo"
	SportDota2      Sport = "dota2"
	SportValorant   Sport = "valorant"
	SportLoL        Sport = "lol"
	SportCoD        Sport = "cod"
	SportUnknown    Sport = "unknown"
)

var knownSports = []Sport{
	SportFootball, SportBasketball, SportTennis, SportCricket, SportBaseball,
	SportHockey, SportEsports, SportPUBG, SportCSGO, SportDota2, SportValorant,
	SportLoL, SportCoD,
}

// KnownSports lists every sport except SportUnknown.
func KnownSports() []Sport { return slices.Clone(knownSports) }

// ParseSport maps a raw sport tag onto a Sport. Unrecognised or empty tags
// map to SportUnknown.
func ParseSport(raw string) Sport {
	s := Sport(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range knownSports {
		if s == k {
			return k
		}
	}
	return SportUnknown
}

// Bookmaker identifies the source that published a quote.
type Bookmaker string

const (
	BookmakerMostbet   Bookmaker = "mostbet"
	BookmakerStake     Bookmaker = "stake"
	BookmakerLeon      Bookmaker = "leon"
	BookmakerParimatch Bookmaker = "parimatch"
	Bookmaker1xBet     Bookmaker = "1xbet"
	Bookmaker1Win      Bookmaker = "1win"
	BookmakerUnknown   Bookmaker = "unknown"
)

var knownBookmakers = []Bookmaker{
	BookmakerMostbet, BookmakerStake, BookmakerLeon, BookmakerParimatch,
	Bookmaker1xBet, Bookmaker1Win,
}

// KnownBookmakers lists every bookmaker except BookmakerUnknown.
func KnownBookmakers() []Bookmaker { return slices.Clone(knownBookmakers) }

// ParseBookmaker maps a raw identifier onto a Bookmaker, falling back to
// BookmakerUnknown.
func ParseBookmaker(raw string) Bookmaker {
	b := Bookmaker(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range knownBookmakers {
		if b == k {
			return k
		}
	}
	return BookmakerUnknown
}

// UnmarshalText lets bookmakers decode from JSON and TOML strings.
func (b *Bookmaker) UnmarshalText(text []byte) error {
	*b = ParseBookmaker(string(text))
	return nil
}
