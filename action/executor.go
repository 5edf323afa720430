package action

import (
	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/derive"
	"github.com/stcorp/harp-go/geo"
	"github.com/stcorp/harp-go/harperr"
	"github.com/stcorp/harp-go/unit"
)

// CollocationLookup answers whether a (source_product, index) pair
// appears on the named side of a loaded collocation result. It is the
// external collaborator a CollocationFilter action consumes; loading
// the result file it wraps is out of this package's scope.
type CollocationLookup interface {
	Contains(side Side, sourceProduct string, index int) bool
}

// AreaMaskLookup answers the three per-sample predicates an area mask
// file exposes. index is the sample's position along time.
type AreaMaskLookup interface {
	PointCovered(index int) bool
	AreaCovered(index int) bool
	IntersectFraction(index int) float64
}

// Context carries the executor's external collaborators: the
// derivation engine for VariableDerivation, and any loaded collocation
// result / area mask files, keyed by the filename the action named
// them with. A nil Context is valid as long as no action in the list
// needs one of these collaborators; such an action then fails with a
// KindScript error naming the missing collaborator.
type Context struct {
	Derive      *derive.Engine
	Collocation map[string]CollocationLookup
	AreaMask    map[string]AreaMaskLookup
}

// Execute applies actions to p in order. Each action is fully computed
// before any mutation is committed, so a failing action leaves p
// exactly as it was before that action ran; actions that already
// committed remain in effect.
func Execute(p *harp.Product, actions []Action, ctx *Context) error {
	for _, a := range actions {
		if err := apply(p, a, ctx); err != nil {
			return err
		}
	}
	return nil
}

func apply(p *harp.Product, a Action, ctx *Context) error {
	switch v := a.(type) {
	case ComparisonFilter:
		return applyFloatRowFilter(p, v.Var, func(val float64, unitOK bool) bool {
			return unitOK && compareFloat(val, v.Op, v.Value)
		}, v.Unit, v.HasUnit)
	case StringComparisonFilter:
		return applyStringRowFilter(p, v.Var, func(s string) bool {
			if v.Op == OpEq {
				return s == v.Value
			}
			return s != v.Value
		})
	case BitMaskFilter:
		return applyIntRowFilter(p, v.Var, func(val int) bool {
			masked := val & int(v.Mask)
			if v.Op == AllBitsInMaskSet {
				return masked == int(v.Mask)
			}
			return masked == 0
		})
	case MembershipFilter:
		return applyFloatRowFilter(p, v.Var, func(val float64, unitOK bool) bool {
			if !unitOK {
				return false
			}
			for _, want := range v.Values {
				if val == want {
					return !v.Negate
				}
			}
			return v.Negate
		}, v.Unit, v.HasUnit)
	case StringMembershipFilter:
		return applyStringRowFilter(p, v.Var, func(s string) bool {
			for _, want := range v.Values {
				if s == want {
					return !v.Negate
				}
			}
			return v.Negate
		})
	case ValidRangeFilter:
		return applyValidRangeFilter(p, v.Var)
	case LongitudeRangeFilter:
		return applyLongitudeRangeFilter(p, v)
	case PointDistanceFilter:
		return applyPointDistanceFilter(p, v)
	case CollocationFilter:
		return applyCollocationFilter(p, v, ctx)
	case AreaMaskCoversPointFilter:
		return applyAreaMaskFilter(p, v.Filename, ctx, func(l AreaMaskLookup, i int) bool { return l.PointCovered(i) })
	case AreaMaskCoversAreaFilter:
		return applyAreaMaskFilter(p, v.Filename, ctx, func(l AreaMaskLookup, i int) bool { return l.AreaCovered(i) })
	case AreaMaskIntersectsAreaFilter:
		return applyAreaMaskFilter(p, v.Filename, ctx, func(l AreaMaskLookup, i int) bool {
			return l.IntersectFraction(i)*100 >= v.MinFractionPct
		})
	case VariableDerivation:
		return applyVariableDerivation(p, v, ctx)
	case VariableInclusion:
		return applyVariableInclusion(p, v)
	case VariableExclusion:
		return applyVariableExclusion(p, v)
	}
	return harperr.Script(0, "unrecognised action %T", a)
}

func compareFloat(val float64, op CompareOp, want float64) bool {
	switch op {
	case OpEq:
		return val == want
	case OpNe:
		return val != want
	case OpLt:
		return val < want
	case OpLe:
		return val <= want
	case OpGt:
		return val > want
	case OpGe:
		return val >= want
	}
	return false
}

// applyFloatRowFilter drops time rows of p for which keep returns false
// for variable name's value (converted into argUnit if given, or taken
// as-is in the variable's unit otherwise), or for which the value is
// the variable's declared fill value.
func applyFloatRowFilter(p *harp.Product, name string, keep func(val float64, unitOK bool) bool, argUnit string, hasUnit bool) error {
	v, ok := p.Get(name)
	if !ok {
		return harperr.Variable(name, "no such variable")
	}
	factor := 1.0
	if hasUnit {
		f, err := unit.Factor(v.Unit, argUnit)
		if err != nil {
			return err
		}
		factor = f
	}
	mask, err := v.RowMask(harp.Time, func(idx []int) bool {
		val := v.GetFloat(idx...)
		if v.IsFillValue(val) {
			return false
		}
		return keep(val*factor, true)
	})
	if err != nil {
		return harperr.Variable(name, err.Error())
	}
	return p.FilterTime(mask)
}

func applyStringRowFilter(p *harp.Product, name string, keep func(string) bool) error {
	v, ok := p.Get(name)
	if !ok {
		return harperr.Variable(name, "no such variable")
	}
	mask, err := v.RowMask(harp.Time, func(idx []int) bool {
		return keep(v.GetString(idx[0]))
	})
	if err != nil {
		return harperr.Variable(name, err.Error())
	}
	return p.FilterTime(mask)
}

func applyIntRowFilter(p *harp.Product, name string, keep func(int) bool) error {
	v, ok := p.Get(name)
	if !ok {
		return harperr.Variable(name, "no such variable")
	}
	mask, err := v.RowMask(harp.Time, func(idx []int) bool {
		return keep(v.GetInt(idx...))
	})
	if err != nil {
		return harperr.Variable(name, err.Error())
	}
	return p.FilterTime(mask)
}

func applyValidRangeFilter(p *harp.Product, name string) error {
	v, ok := p.Get(name)
	if !ok {
		return harperr.Variable(name, "no such variable")
	}
	if v.ValidRange == nil {
		return nil // no declared range: no-op
	}
	lo, hi := v.ValidRange[0], v.ValidRange[1]
	mask, err := v.RowMask(harp.Time, func(idx []int) bool {
		val := v.GetFloat(idx...)
		return val >= lo && val <= hi
	})
	if err != nil {
		return harperr.Variable(name, err.Error())
	}
	return p.FilterTime(mask)
}

func applyLongitudeRangeFilter(p *harp.Product, f LongitudeRangeFilter) error {
	v, ok := p.Get("longitude")
	if !ok {
		return harperr.Variable("longitude", "no such variable")
	}
	minFactor, err := unit.Factor(f.MinUnit, "deg")
	if err != nil {
		return err
	}
	maxFactor, err := unit.Factor(f.MaxUnit, "deg")
	if err != nil {
		return err
	}
	lonFactor, err := unit.Factor(v.Unit, "deg")
	if err != nil {
		return err
	}
	min := f.Min * minFactor
	max := f.Max * maxFactor
	span := max - min
	if span < 0 {
		span += 360
	}
	mask, err := v.RowMask(harp.Time, func(idx []int) bool {
		lon := v.GetFloat(idx...) * lonFactor
		x := geo.NormalizeLongitude(lon, min) - min
		return x <= span
	})
	if err != nil {
		return harperr.Variable("longitude", err.Error())
	}
	return p.FilterTime(mask)
}

func applyPointDistanceFilter(p *harp.Product, f PointDistanceFilter) error {
	lat, ok := p.Get("latitude")
	if !ok {
		return harperr.Variable("latitude", "no such variable")
	}
	lon, ok := p.Get("longitude")
	if !ok {
		return harperr.Variable("longitude", "no such variable")
	}
	latFactor, err := unit.Factor(lat.Unit, "deg")
	if err != nil {
		return err
	}
	lonFactor, err := unit.Factor(lon.Unit, "deg")
	if err != nil {
		return err
	}
	centerLatFactor, err := unit.Factor(f.LatUnit, "deg")
	if err != nil {
		return err
	}
	centerLonFactor, err := unit.Factor(f.LonUnit, "deg")
	if err != nil {
		return err
	}
	distFactor, err := unit.Factor(f.DistanceUnit, "m")
	if err != nil {
		return err
	}
	center := geo.Point{Lat: f.Lat * centerLatFactor, Lon: f.Lon * centerLonFactor}
	thresholdM := f.Distance * distFactor
	mask, err := lat.RowMask(harp.Time, func(idx []int) bool {
		pt := geo.Point{Lat: lat.GetFloat(idx...) * latFactor, Lon: lon.GetFloat(idx...) * lonFactor}
		return geo.GreatCircleDistance(center, pt) <= thresholdM
	})
	if err != nil {
		return harperr.Variable("latitude", err.Error())
	}
	return p.FilterTime(mask)
}

func sampleIndex(p *harp.Product, row int) int {
	if idx, ok := p.Get("index"); ok {
		return idx.GetInt(row)
	}
	return row
}

func applyCollocationFilter(p *harp.Product, f CollocationFilter, ctx *Context) error {
	if ctx == nil || ctx.Collocation == nil {
		return harperr.Script(0, "collocation-filter(%q): no collocation result loaded", f.Filename)
	}
	lookup, ok := ctx.Collocation[f.Filename]
	if !ok {
		return harperr.Script(0, "collocation-filter: %q is not a loaded collocation result", f.Filename)
	}
	extent, hasTime := p.TimeExtent()
	if !hasTime {
		return nil
	}
	mask := make([]bool, extent)
	for i := range mask {
		mask[i] = lookup.Contains(f.Side, p.SourceProduct, sampleIndex(p, i))
	}
	return p.FilterTime(mask)
}

func applyAreaMaskFilter(p *harp.Product, filename string, ctx *Context, keep func(AreaMaskLookup, int) bool) error {
	if ctx == nil || ctx.AreaMask == nil {
		return harperr.Script(0, "area mask %q: no area mask loaded", filename)
	}
	lookup, ok := ctx.AreaMask[filename]
	if !ok {
		return harperr.Script(0, "area mask: %q is not a loaded area mask", filename)
	}
	extent, hasTime := p.TimeExtent()
	if !hasTime {
		return nil
	}
	mask := make([]bool, extent)
	for i := range mask {
		mask[i] = keep(lookup, sampleIndex(p, i))
	}
	return p.FilterTime(mask)
}

func applyVariableDerivation(p *harp.Product, d VariableDerivation, ctx *Context) error {
	if ctx == nil || ctx.Derive == nil {
		return harperr.Script(0, "derive(%q): no derivation engine configured", d.Var)
	}
	if p.Has(d.Var) {
		existing, _ := p.Get(d.Var)
		if dimsEqualAction(existing.Dims(), d.Dims) && (!d.HasUnit || unit.IsCompatible(existing.Unit, d.Unit)) {
			return nil // already present and suitable: no-op
		}
	}
	before := map[string]bool{}
	for _, n := range p.Names() {
		before[n] = true
	}
	var err error
	if d.HasUnit {
		_, err = ctx.Derive.Derive(p, d.Var, d.Dims, d.Unit)
	} else {
		_, err = ctx.Derive.DeriveAny(p, d.Var, d.Dims)
	}
	if err != nil {
		// drop any intermediate variables the failed search attached
		for _, n := range p.Names() {
			if !before[n] {
				p.RemoveVariable(n)
			}
		}
	}
	return err
}

func dimsEqualAction(a, b []harp.Dimension) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func applyVariableInclusion(p *harp.Product, inc VariableInclusion) error {
	keep := map[string]bool{}
	for _, n := range inc.Names {
		keep[n] = true
	}
	keep["index"] = true
	for _, name := range p.Names() {
		if !keep[name] {
			if err := p.RemoveVariable(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyVariableExclusion(p *harp.Product, exc VariableExclusion) error {
	for _, name := range exc.Names {
		if !p.Has(name) {
			continue
		}
		if err := p.RemoveVariable(name); err != nil {
			return err
		}
	}
	return nil
}
