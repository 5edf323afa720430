// Package unit parses UDUNITS-compatible unit strings and answers two
// questions about them: whether two units measure the same physical
// quantity (IsCompatible) and what factor converts a value from one
// unit to another (Factor). It does not interpret the angular modulus
// of a quantity (longitude wraps, wind directions, …) — that remains
// the caller's concern.
package unit

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/stcorp/harp-go/harperr"
)

// dims is a base-dimension exponent vector. Zero entries are always
// pruned so two dims values compare equal with reflect.DeepEqual.
type dims map[string]int

const (
	dimLength      = "length"
	dimMass        = "mass"
	dimTime        = "time"
	dimTemperature = "temperature"
	dimSubstance   = "substance"
	dimAngle       = "angle"
)

// parsed is a fully resolved unit: its base dimensions and its scale
// relative to the package's internal SI-like reference system (metre,
// kilogram, second, kelvin, mole, radian).
type parsed struct {
	dims  dims
	scale float64
}

func (p parsed) String() string {
	if len(p.dims) == 0 {
		return "1"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%g", p.scale)
	for k, v := range p.dims {
		fmt.Fprintf(&b, ".%s^%d", k, v)
	}
	return b.String()
}

func mulDims(a, b dims, bExp int) dims {
	out := dims{}
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v * bExp
	}
	for k, v := range out {
		if v == 0 {
			delete(out, k)
		}
	}
	return out
}

func sameDims(a, b dims) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// baseUnit is a named, non-prefixable-by-default unit symbol.
type baseUnit struct {
	dims  dims
	scale float64
}

// exact full symbols, tried before any prefix decomposition.
var exactUnits = map[string]baseUnit{
	"":      {dims{}, 1},
	"1":     {dims{}, 1},
	"%":     {dims{}, 0.01},
	"ppm":   {dims{}, 1e-6},
	"ppmv":  {dims{}, 1e-6},
	"ppb":   {dims{}, 1e-9},
	"ppbv":  {dims{}, 1e-9},
	"ppt":   {dims{}, 1e-12},
	"pptv":  {dims{}, 1e-12},
	"rad":   {dims{dimAngle: 1}, 1},
	"deg":   {dims{dimAngle: 1}, math.Pi / 180},
	"degree": {dims{dimAngle: 1}, math.Pi / 180},
	"Pa":    {dims{dimMass: 1, dimLength: -1, dimTime: -2}, 1},
	"bar":   {dims{dimMass: 1, dimLength: -1, dimTime: -2}, 1e5},
	"atm":   {dims{dimMass: 1, dimLength: -1, dimTime: -2}, 101325},
	"torr":  {dims{dimMass: 1, dimLength: -1, dimTime: -2}, 133.322368},
	"mmHg":  {dims{dimMass: 1, dimLength: -1, dimTime: -2}, 133.322368},
	"molec": {dims{dimSubstance: 1}, 1 / 6.02214076e23},
	"L":     {dims{dimLength: 3}, 1e-3},
	"l":     {dims{dimLength: 3}, 1e-3},
	"min":   {dims{dimTime: 1}, 60},
	"h":     {dims{dimTime: 1}, 3600},
	"hr":    {dims{dimTime: 1}, 3600},
	"day":   {dims{dimTime: 1}, 86400},
	"K":     {dims{dimTemperature: 1}, 1},
	"mol":   {dims{dimSubstance: 1}, 1},
}

// prefixable are the base symbols that accept an SI prefix.
var prefixable = map[string]baseUnit{
	"m": {dims{dimLength: 1}, 1},
	"g": {dims{dimMass: 1}, 1e-3},
	"s": {dims{dimTime: 1}, 1},
	"Pa": {dims{dimMass: 1, dimLength: -1, dimTime: -2}, 1},
	"mol": {dims{dimSubstance: 1}, 1},
}

// siPrefixOrder is ordered longest-symbol-first so "da" is tried before "d".
var siPrefixOrder = []string{"da", "Y", "Z", "E", "P", "T", "G", "M", "k", "h", "d", "c", "m", "u", "µ", "n", "p", "f", "a", "z", "y"}

var siPrefixScale = map[string]float64{
	"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12, "G": 1e9,
	"M": 1e6, "k": 1e3, "h": 1e2, "da": 1e1, "d": 1e-1, "c": 1e-2,
	"m": 1e-3, "u": 1e-6, "µ": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15,
	"a": 1e-18, "z": 1e-21, "y": 1e-24,
}

var tokenRE = regexp.MustCompile(`^([A-Za-zµ%]+)(\^?(-?\d+))?$`)

func parseSymbol(sym string) (baseUnit, error) {
	if u, ok := exactUnits[sym]; ok {
		return u, nil
	}
	for _, p := range siPrefixOrder {
		if strings.HasPrefix(sym, p) {
			rest := sym[len(p):]
			if rest == "" {
				continue
			}
			if base, ok := prefixable[rest]; ok {
				return baseUnit{dims: base.dims, scale: base.scale * siPrefixScale[p]}, nil
			}
		}
	}
	return baseUnit{}, fmt.Errorf("unrecognized unit symbol %q", sym)
}

func parseToken(tok string) (parsed, error) {
	m := tokenRE.FindStringSubmatch(tok)
	if m == nil {
		return parsed{}, fmt.Errorf("malformed unit token %q", tok)
	}
	sym := m[1]
	exp := 1
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return parsed{}, fmt.Errorf("malformed exponent in %q", tok)
		}
		exp = n
	}
	base, err := parseSymbol(sym)
	if err != nil {
		return parsed{}, err
	}
	return parsed{dims: mulDims(dims{}, base.dims, exp), scale: math.Pow(base.scale, float64(exp))}, nil
}

// Parse parses a unit string into its resolved (dims, scale) form.
func Parse(s string) (parsed, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "1"
	}
	// strip the harp DSL's [ ] quoting if the caller passed it through
	// unstripped.
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	result := parsed{dims: dims{}, scale: 1}
	i := 0
	op := byte('.')
	for i < len(s) {
		// find the next operator
		j := i
		for j < len(s) && s[j] != '.' && s[j] != '*' && s[j] != '/' {
			j++
		}
		tok := strings.TrimSpace(s[i:j])
		if tok == "" {
			return parsed{}, fmt.Errorf("empty unit factor in %q", s)
		}
		t, err := parseToken(tok)
		if err != nil {
			return parsed{}, err
		}
		switch op {
		case '.', '*':
			result.dims = mulDims(result.dims, t.dims, 1)
			result.scale *= t.scale
		case '/':
			result.dims = mulDims(result.dims, t.dims, -1)
			result.scale /= t.scale
		}
		if j < len(s) {
			op = s[j]
			i = j + 1
		} else {
			i = j
		}
	}
	return result, nil
}

// MustParse is Parse but panics on error; useful for package-level
// unit literals in tests and rule tables.
func MustParse(s string) parsed {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsCompatible reports whether values expressed in unit a can be
// converted, by a pure scale factor, into unit b.
func IsCompatible(a, b string) bool {
	pa, err := Parse(a)
	if err != nil {
		return false
	}
	pb, err := Parse(b)
	if err != nil {
		return false
	}
	return sameDims(pa.dims, pb.dims)
}

// Validate reports whether s is a syntactically valid unit string,
// without needing a second unit to check compatibility against.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// Factor returns f such that for a value x expressed in unit from,
// x*f is the same physical quantity expressed in unit to. It fails
// with a *harperr.Error of KindUnit if either unit is unparsable or
// the two units are not dimensionally compatible.
func Factor(from, to string) (float64, error) {
	pf, err := Parse(from)
	if err != nil {
		return 0, harperr.Unit(from, to, "invalid source unit: %v", err)
	}
	pt, err := Parse(to)
	if err != nil {
		return 0, harperr.Unit(from, to, "invalid target unit: %v", err)
	}
	if !sameDims(pf.dims, pt.dims) {
		return 0, harperr.Unit(from, to, "incompatible dimensions")
	}
	return pf.scale / pt.scale, nil
}
