// Package collocate implements the multi-criterion matchup engine:
// time-sweep product loading across two datasets, per-criterion
// unit-normalised difference evaluation, geospatial predicates, and
// nearest-neighbour reduction into a stable CollocationResult.
package collocate

import (
	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/geo"
	"github.com/stcorp/harp-go/harperr"
	"github.com/stcorp/harp-go/unit"
)

// Criterion is one pairwise test the sweep evaluates for a candidate
// (sample_a, sample_b) pair. Evaluate returns the criterion's
// unit-normalised difference and whether the pair passes; a failing
// criterion short-circuits the rest of the criteria list.
type Criterion interface {
	Name() string
	Unit() string
	Evaluate(a *harp.Product, ia int, b *harp.Product, ib int) (diff float64, ok bool, err error)
}

// ValueCriterion compares the named variable between the two products,
// optionally reducing the difference modulo a period (for angular
// quantities) before comparing it to Threshold.
type ValueCriterion struct {
	VarName    string
	Threshold  float64
	UnitStr    string // "" uses the variable's own unit
	UseModulo  bool
	Modulo     float64
}

func (c ValueCriterion) Name() string { return c.VarName }
func (c ValueCriterion) Unit() string {
	if c.UnitStr != "" {
		return c.UnitStr
	}
	return "1"
}

func (c ValueCriterion) Evaluate(a *harp.Product, ia int, b *harp.Product, ib int) (float64, bool, error) {
	va, ok := a.Get(c.VarName)
	if !ok {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.VarName, "missing variable %q in product a", c.VarName)
	}
	vb, ok := b.Get(c.VarName)
	if !ok {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.VarName, "missing variable %q in product b", c.VarName)
	}
	wantUnit := c.UnitStr
	if wantUnit == "" {
		wantUnit = va.Unit
	}
	fa, err := unit.Factor(va.Unit, wantUnit)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.VarName, "%v", err)
	}
	fb, err := unit.Factor(vb.Unit, wantUnit)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.VarName, "%v", err)
	}
	x := va.GetFloat(ia) * fa
	y := vb.GetFloat(ib) * fb
	var diff float64
	if c.UseModulo {
		diff = geo.ModuloDifference(x, y, c.Modulo)
	} else {
		diff = absFloat(x - y)
	}
	return diff, diff <= c.Threshold, nil
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// DatetimeCriterion is the special-cased time criterion: a ValueCriterion
// over the "datetime" variable, canonical unit seconds, always evaluated
// first when both it and other criteria are present.
type DatetimeCriterion struct {
	Threshold float64
	UnitStr   string // "" defaults to "s"
}

func (c DatetimeCriterion) Name() string { return "datetime" }
func (c DatetimeCriterion) Unit() string {
	if c.UnitStr != "" {
		return c.UnitStr
	}
	return "s"
}

func (c DatetimeCriterion) Evaluate(a *harp.Product, ia int, b *harp.Product, ib int) (float64, bool, error) {
	vc := ValueCriterion{VarName: "datetime", Threshold: c.Threshold, UnitStr: c.Unit()}
	return vc.Evaluate(a, ia, b, ib)
}

// thresholdSeconds converts the criterion's threshold into seconds, for
// the sweep's window computation.
func (c DatetimeCriterion) thresholdSeconds() (float64, error) {
	f, err := unit.Factor(c.Unit(), "s")
	if err != nil {
		return 0, err
	}
	return c.Threshold * f, nil
}

// PointDistanceCriterion compares great-circle distance between each
// product's latitude/longitude, always evaluated last when present.
type PointDistanceCriterion struct {
	Threshold float64
	UnitStr   string // "" defaults to "m"
}

func (c PointDistanceCriterion) Name() string { return "point_distance" }
func (c PointDistanceCriterion) Unit() string {
	if c.UnitStr != "" {
		return c.UnitStr
	}
	return "m"
}

func (c PointDistanceCriterion) Evaluate(a *harp.Product, ia int, b *harp.Product, ib int) (float64, bool, error) {
	pa, err := latLon(a, ia)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, "point_distance", "%v", err)
	}
	pb, err := latLon(b, ib)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, "point_distance", "%v", err)
	}
	distM := geo.GreatCircleDistance(pa, pb)
	factor, err := unit.Factor("m", c.Unit())
	if err != nil {
		return 0, false, err
	}
	diff := distM * factor
	return diff, diff <= c.Threshold, nil
}

func latLon(p *harp.Product, i int) (geo.Point, error) {
	lat, ok := p.Get("latitude")
	if !ok {
		return geo.Point{}, harperr.Variable("latitude", "no such variable")
	}
	lon, ok := p.Get("longitude")
	if !ok {
		return geo.Point{}, harperr.Variable("longitude", "no such variable")
	}
	latFactor, err := unit.Factor(lat.Unit, "deg")
	if err != nil {
		return geo.Point{}, err
	}
	lonFactor, err := unit.Factor(lon.Unit, "deg")
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Lat: lat.GetFloat(i) * latFactor, Lon: lon.GetFloat(i) * lonFactor}, nil
}

// AreaIntersectsCriterion passes when the two samples' bounding
// polygons (latitude_bounds/longitude_bounds) overlap on the sphere.
// ToleranceMeters treats vertices within that distance of each other
// as coincident, so two footprints that meet edge-to-edge aren't
// missed due to rounding (0 disables this and requires a strict
// overlap).
type AreaIntersectsCriterion struct {
	ToleranceMeters float64
}

func (AreaIntersectsCriterion) Name() string { return "area_intersects" }
func (AreaIntersectsCriterion) Unit() string { return "1" }

func (c AreaIntersectsCriterion) Evaluate(a *harp.Product, ia int, b *harp.Product, ib int) (float64, bool, error) {
	ra, err := boundsRing(a, ia)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.Name(), "%v", err)
	}
	rb, err := boundsRing(b, ib)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.Name(), "%v", err)
	}
	if geo.RingsIntersect(ra, rb, c.ToleranceMeters) {
		return 0, true, nil
	}
	return 0, false, nil
}

func boundsRing(p *harp.Product, sample int) (geo.Ring, error) {
	latB, ok := p.Get("latitude_bounds")
	if !ok {
		return nil, harperr.Variable("latitude_bounds", "no such variable")
	}
	lonB, ok := p.Get("longitude_bounds")
	if !ok {
		return nil, harperr.Variable("longitude_bounds", "no such variable")
	}
	shape := latB.Shape()
	if len(shape) != 2 {
		return nil, harperr.Variable("latitude_bounds", "expected shape [time, independent]")
	}
	n := shape[1]
	ring := make(geo.Ring, n)
	for k := 0; k < n; k++ {
		ring[k] = geo.Point{Lat: latB.GetFloat(sample, k), Lon: lonB.GetFloat(sample, k)}
	}
	return ring, nil
}

// Direction names which product's point must lie within the other's
// area for a PointInAreaCriterion.
type Direction int

const (
	AInB Direction = iota
	BInA
)

// PointInAreaCriterion passes when one product's point lies within the
// other's bounding polygon.
type PointInAreaCriterion struct {
	Direction Direction
}

func (PointInAreaCriterion) Name() string { return "point_in_area" }
func (PointInAreaCriterion) Unit() string { return "1" }

func (c PointInAreaCriterion) Evaluate(a *harp.Product, ia int, b *harp.Product, ib int) (float64, bool, error) {
	pointProduct, pointIdx, areaProduct, areaIdx := a, ia, b, ib
	if c.Direction == BInA {
		pointProduct, pointIdx, areaProduct, areaIdx = b, ib, a, ia
	}
	pt, err := latLon(pointProduct, pointIdx)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.Name(), "%v", err)
	}
	ring, err := boundsRing(areaProduct, areaIdx)
	if err != nil {
		return 0, false, harperr.Collocation(a.SourceProduct, b.SourceProduct, c.Name(), "%v", err)
	}
	status := geo.PointInPolygon(pt, ring)
	return 0, status != geo.Outside, nil
}
