// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Position is the closed set of playing positions.
type Position int

// Positions in squad order. The zero value is not a valid position.
const (
	PositionUnknown Position = iota
	Goalkeeper
	Defender
	Midfielder
	Forward
)

// Positions lists every valid position in squad order.
var Positions = []Position{Goalkeeper, Defender, Midfielder, Forward}

// String returns the short code, e.g. "GK".
func (p Position) String() string {
	switch p {
	case Goalkeeper:
		return "GK"
	case Defender:
		return "DEF"
	case Midfielder:
		return "MID"
	case Forward:
		return "FWD"
	default:
		return "UNKNOWN"
	}
}

// Plural returns the human form used in advice text.
func (p Position) Plural() string {
	switch p {
	case Goalkeeper:
		return "goalkeepers"
	case Defender:
		return "defenders"
	case Midfielder:
		return "midfielders"
	case Forward:
		return "forwards"
	default:
		return "players"
	}
}

// Valid reports whether p is one of the four playing positions.
func (p Position) Valid() bool {
	return p >= Goalkeeper && p <= Forward
}

// ParsePosition accepts short codes (GK, DEF, MID, FWD), long names and the
// numeric element types 1..4.
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GK", "GKP", "GOALKEEPER", "1":
		return Goalkeeper, nil
	case "DEF", "DEFENDER", "2":
		return Defender, nil
	case "MID", "MIDFIELDER", "3":
		return Midfielder, nil
	case "FWD", "FW", "FORWARD", "4":
		return Forward, nil
	}
	return PositionUnknown, fmt.Errorf("unknown position %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Position) UnmarshalText(b []byte) error {
	v, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// UnmarshalJSON accepts both "MID" and 3.
func (p *Position) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return p.UnmarshalText([]byte(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("unknown position %s", b)
	}
	return p.UnmarshalText([]byte(strconv.Itoa(n)))
}
