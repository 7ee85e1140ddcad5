// Package models - ghs.go defines the canonical GHS hazard pictogram tags and
// the ordered-set type chemicals store them in.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// GHSSymbol is one canonical GHS hazard pictogram tag.
type GHSSymbol string

// The nine GHS pictograms, in GHS01..GHS09 order.
const (
	GHSExplodingBomb      GHSSymbol = "Exploding Bomb"
	GHSFlame              GHSSymbol = "Flame"
	GHSFlameOverCircle    GHSSymbol = "Flame Over Circle"
	GHSGasCylinder        GHSSymbol = "Gas Cylinder"
	GHSCorrosion          GHSSymbol = "Corrosion"
	GHSSkullAndCrossbones GHSSymbol = "Skull and Crossbones"
	GHSExclamationMark    GHSSymbol = "Exclamation Mark"
	GHSHealthHazard       GHSSymbol = "Health Hazard"
	GHSEnvironment        GHSSymbol = "Environment"
)

// AllGHSSymbols lists every canonical tag in pictogram order.
var AllGHSSymbols = []GHSSymbol{
	GHSExplodingBomb,
	GHSFlame,
	GHSFlameOverCircle,
	GHSGasCylinder,
	GHSCorrosion,
	GHSSkullAndCrossbones,
	GHSExclamationMark,
	GHSHealthHazard,
	GHSEnvironment,
}

// ghsAliases maps normalised spellings (see normaliseGHSKey) to canonical tags.
var ghsAliases = func() map[string]GHSSymbol {
	m := map[string]GHSSymbol{
		"explosive":          GHSExplodingBomb,
		"explosives":         GHSExplodingBomb,
		"flammable":          GHSFlame,
		"oxidizer":           GHSFlameOverCircle,
		"oxidiser":           GHSFlameOverCircle,
		"oxidizing":          GHSFlameOverCircle,
		"compressed gas":     GHSGasCylinder,
		"gas under pressure": GHSGasCylinder,
		"corrosive":          GHSCorrosion,
		"toxic":              GHSSkullAndCrossbones,
		"acute toxicity":     GHSSkullAndCrossbones,
		"skull":              GHSSkullAndCrossbones,
		"irritant":           GHSExclamationMark,
		"harmful":            GHSExclamationMark,
		"exclamation":        GHSExclamationMark,
		"environmental":      GHSEnvironment,
	}
	for i, s := range AllGHSSymbols {
		m[normaliseGHSKey(string(s))] = s
		m[fmt.Sprintf("ghs%02d", i+1)] = s
	}
	return m
}()

func normaliseGHSKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseGHSSymbol resolves a tag, pictogram code (GHS02) or hazard word
// (flammable) to its canonical symbol. Matching ignores case, surrounding
// space, and '-'/'_' separators.
func ParseGHSSymbol(s string) (GHSSymbol, error) {
	if sym, ok := ghsAliases[normaliseGHSKey(s)]; ok {
		return sym, nil
	}
	return "", fmt.Errorf("unknown GHS symbol %q", s)
}

// GHSSymbols is an ordered set of canonical tags: insertion order is kept and
// duplicates are dropped. It is stored as a postgres TEXT[].
type GHSSymbols []GHSSymbol

// ParseGHSSymbols canonicalises raw tags into a GHSSymbols set. Blank entries
// are skipped; any unknown tag fails the whole set.
func ParseGHSSymbols(raw []string) (GHSSymbols, error) {
	out := make(GHSSymbols, 0, len(raw))
	seen := make(map[GHSSymbol]bool, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		sym, err := ParseGHSSymbol(r)
		if err != nil {
			return nil, err
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, nil
}

// Strings returns the tags as plain strings.
func (s GHSSymbols) Strings() []string {
	out := make([]string, len(s))
	for i, sym := range s {
		out[i] = string(sym)
	}
	return out
}

// Contains reports whether sym is in the set.
func (s GHSSymbols) Contains(sym GHSSymbol) bool {
	for _, v := range s {
		if v == sym {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s GHSSymbols) Value() (driver.Value, error) {
	return pq.StringArray(s.Strings()).Value()
}

// Scan implements sql.Scanner. Stored values are canonicalised on the way
// out as well, so rows written before a rename still read cleanly.
func (s *GHSSymbols) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan ghs_symbols: %w", err)
	}
	parsed, err := ParseGHSSymbols(arr)
	if err != nil {
		return fmt.Errorf("scan ghs_symbols: %w", err)
	}
	*s = parsed
	return nil
}

// MarshalJSON always produces an array, never null.
func (s GHSSymbols) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON accepts an array of tags and canonicalises it.
func (s *GHSSymbols) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ghs_symbols must be an array of strings: %w", err)
	}
	parsed, err := ParseGHSSymbols(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
