package geo

import "testing"

func TestRingsIntersectTolerance(t *testing.T) {
	// Two unit squares that share no area and don't touch: a gap of
	// about 11m in latitude between them.
	a := Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}}
	b := Ring{{Lat: 1.0001, Lon: 0}, {Lat: 1.0001, Lon: 1}, {Lat: 1.01, Lon: 1}, {Lat: 1.01, Lon: 0}}

	if RingsIntersect(a, b, 0) {
		t.Fatal("expected no intersection without a tolerance")
	}
	if RingsIntersect(a, b, 1) {
		t.Fatal("expected no intersection at a 1m tolerance: the gap is roughly 11m")
	}
	if !RingsIntersect(a, b, 20) {
		t.Error("expected a 20m tolerance to bridge the ~11m gap between the rings")
	}
}
