// Package areamask loads an external area-mask file (a shapefile keyed
// by source_product and index, one polygon per sample) and adapts it
// into the action package's AreaMaskLookup interface.
package areamask

import (
	"fmt"

	shp "github.com/jonas-p/go-shp"

	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/action"
	"github.com/stcorp/harp-go/geo"
)

// File is a loaded area-mask shapefile: one polygon per (source_product,
// index) pair, read from the shapefile's geometry and its
// "source_product"/"index" attribute columns.
type File struct {
	bySample map[string]map[int32]geo.Ring
}

// Load reads path (a .shp with matching .dbf) into a File, using go-shp
// rather than a geom-based decoder so loading a mask doesn't pull in a
// polygon-clipping dependency this package doesn't otherwise need.
func Load(path string) (*File, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("areamask: open %q: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	productCol, indexCol := -1, -1
	for i, f := range fields {
		switch f.String() {
		case "source_product":
			productCol = i
		case "index":
			indexCol = i
		}
	}
	if productCol < 0 || indexCol < 0 {
		return nil, fmt.Errorf("areamask: %q missing source_product/index attribute columns", path)
	}

	f := &File{bySample: map[string]map[int32]geo.Ring{}}
	for r.Next() {
		n, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		product := r.ReadAttribute(n, productCol)
		var index int32
		fmt.Sscanf(r.ReadAttribute(n, indexCol), "%d", &index)

		ring := polygonOuterRing(poly)
		if f.bySample[product] == nil {
			f.bySample[product] = map[int32]geo.Ring{}
		}
		f.bySample[product][index] = ring
	}
	return f, nil
}

// polygonOuterRing takes the first ring of a shapefile polygon (its
// outer boundary; spec's area-mask predicates do not need holes).
func polygonOuterRing(poly *shp.Polygon) geo.Ring {
	end := len(poly.Points)
	if len(poly.Parts) > 1 {
		end = int(poly.Parts[1])
	}
	pts := poly.Points[:end]
	ring := make(geo.Ring, len(pts))
	for i, pt := range pts {
		ring[i] = geo.Point{Lat: pt.Y, Lon: pt.X}
	}
	return ring
}

// Lookup binds f to one product, returning an action.AreaMaskLookup
// that answers the three §4.7 predicates against that product's own
// latitude/longitude and latitude_bounds/longitude_bounds.
func (f *File) Lookup(p *harp.Product) (action.AreaMaskLookup, error) {
	bySample, ok := f.bySample[p.SourceProduct]
	if !ok {
		return nil, fmt.Errorf("areamask: no entries for source product %q", p.SourceProduct)
	}
	lat, hasLat := p.Get("latitude")
	lon, hasLon := p.Get("longitude")
	latB, hasLatB := p.Get("latitude_bounds")
	lonB, hasLonB := p.Get("longitude_bounds")
	return &lookup{
		bySample: bySample,
		lat:      lat, lon: lon, hasPoint: hasLat && hasLon,
		latB: latB, lonB: lonB, hasBounds: hasLatB && hasLonB,
	}, nil
}

type lookup struct {
	bySample   map[int32]geo.Ring
	lat, lon   *harp.Variable
	hasPoint   bool
	latB, lonB *harp.Variable
	hasBounds  bool
}

func (l *lookup) ring(index int) (geo.Ring, bool) {
	r, ok := l.bySample[int32(index)]
	return r, ok
}

func (l *lookup) ownRing(index int) (geo.Ring, bool) {
	if !l.hasBounds {
		return nil, false
	}
	shape := l.latB.Shape()
	if len(shape) != 2 {
		return nil, false
	}
	n := shape[1]
	ring := make(geo.Ring, n)
	for k := 0; k < n; k++ {
		ring[k] = geo.Point{Lat: l.latB.GetFloat(index, k), Lon: l.lonB.GetFloat(index, k)}
	}
	return ring, true
}

func (l *lookup) PointCovered(index int) bool {
	maskRing, ok := l.ring(index)
	if !ok || !l.hasPoint {
		return false
	}
	pt := geo.Point{Lat: l.lat.GetFloat(index), Lon: l.lon.GetFloat(index)}
	return geo.PointInPolygon(pt, maskRing) != geo.Outside
}

func (l *lookup) AreaCovered(index int) bool {
	maskRing, ok := l.ring(index)
	if !ok {
		return false
	}
	own, ok := l.ownRing(index)
	if !ok {
		return false
	}
	for _, v := range own {
		if geo.PointInPolygon(v, maskRing) == geo.Outside {
			return false
		}
	}
	return true
}

// IntersectFraction approximates the overlap fraction between the
// sample's own bounds and the mask polygon as the share of the
// sample's own vertices that fall inside the mask, since the geo
// package does not implement polygon clipping/area computation.
func (l *lookup) IntersectFraction(index int) float64 {
	maskRing, ok := l.ring(index)
	if !ok {
		return 0
	}
	own, ok := l.ownRing(index)
	if !ok || len(own) == 0 {
		return 0
	}
	if !geo.RingsIntersect(own, maskRing, 0) {
		return 0
	}
	inside := 0
	for _, v := range own {
		if geo.PointInPolygon(v, maskRing) != geo.Outside {
			inside++
		}
	}
	return float64(inside) / float64(len(own))
}
