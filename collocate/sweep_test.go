package collocate

import (
	"context"
	"testing"

	harp "github.com/stcorp/harp-go"
)

func timeVar(t *testing.T, name string, unitStr string, vals []float64) *harp.Variable {
	t.Helper()
	v, err := harp.NewVariable(name, harp.F64, []harp.Dimension{harp.Time}, []int{len(vals)})
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range vals {
		v.SetFloat(x, i)
	}
	v.Unit = unitStr
	return v
}

func newProduct(t *testing.T, source string, datetime, lat, lon []float64) *harp.Product {
	t.Helper()
	p := harp.NewProduct(source)
	for _, v := range []*harp.Variable{
		timeVar(t, "datetime", "s", datetime),
		timeVar(t, "latitude", "deg", lat),
		timeVar(t, "longitude", "deg", lon),
	} {
		if err := p.AddVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func memLoader(products map[string]*harp.Product) Loader {
	return LoaderFunc(func(meta ProductMeta) (*harp.Product, error) {
		return products[meta.SourceProduct], nil
	})
}

func metaFor(p *harp.Product, source string) ProductMeta {
	dt, _ := p.Get("datetime")
	n, _ := p.TimeExtent()
	start, stop := dt.GetFloat(0), dt.GetFloat(0)
	for i := 0; i < n; i++ {
		v := dt.GetFloat(i)
		if v < start {
			start = v
		}
		if v > stop {
			stop = v
		}
	}
	return ProductMeta{SourceProduct: source, DatetimeStart: start, DatetimeStop: stop}
}

func TestScenarioPointDistance(t *testing.T) {
	pa := newProduct(t, "A", []float64{0}, []float64{0}, []float64{0})
	pb := newProduct(t, "B", []float64{0, 0}, []float64{0.001, 1.0}, []float64{0.0, 0.0})

	m := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		Loader:   memLoader(map[string]*harp.Product{"A": pa, "B": pb}),
	}
	a := Dataset{Products: []ProductMeta{metaFor(pa, "A")}}
	b := Dataset{Products: []ProductMeta{metaFor(pb, "B")}}
	result, err := m.Match(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected exactly 1 pair, got %d", len(result.Pairs))
	}
	p := result.Pairs[0]
	if p.ProductA != "A" || p.ProductB != "B" || p.SampleB != 0 {
		t.Errorf("expected pair (A:0, B:0), got %+v", p)
	}
	if p.CollocationIndex != 0 {
		t.Errorf("expected collocation_index 0, got %d", p.CollocationIndex)
	}
	dist := p.Differences[0]
	if dist < 100 || dist > 120 {
		t.Errorf("expected point_distance near 111 m, got %v", dist)
	}
}

func TestScenarioNearestNeighbour(t *testing.T) {
	pa := newProduct(t, "A", []float64{0}, []float64{0}, []float64{0})
	// 100m, 200m, 500m approximate offsets in degrees latitude.
	pb := newProduct(t, "B", []float64{0, 0, 0},
		[]float64{0.0009, 0.0018, 0.0045}, []float64{0, 0, 0})

	loader := memLoader(map[string]*harp.Product{"A": pa, "B": pb})
	a := Dataset{Products: []ProductMeta{metaFor(pa, "A")}}
	b := Dataset{Products: []ProductMeta{metaFor(pb, "B")}}

	without := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		Loader:   loader,
	}
	resWithout, err := without.Match(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(resWithout.Pairs) != 3 {
		t.Fatalf("expected 3 pairs without NN, got %d", len(resWithout.Pairs))
	}

	withNN := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		NN:       []NearestNeighbour{{Criterion: "point_distance", Side: ReduceA}},
		Loader:   loader,
	}
	resWith, err := withNN.Match(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(resWith.Pairs) != 1 {
		t.Fatalf("expected 1 pair with NN, got %d", len(resWith.Pairs))
	}
	if resWith.Pairs[0].SampleB != 0 {
		t.Errorf("expected the closest (100m) sample b=0 to survive, got %+v", resWith.Pairs[0])
	}
}

// Determinism: repeated runs over the same inputs assign identical
// collocation_index values.
func TestMatchDeterministic(t *testing.T) {
	pa := newProduct(t, "A", []float64{0, 10}, []float64{0, 1}, []float64{0, 1})
	pb := newProduct(t, "B", []float64{0, 10}, []float64{0, 1}, []float64{0, 1})
	loader := memLoader(map[string]*harp.Product{"A": pa, "B": pb})
	a := Dataset{Products: []ProductMeta{metaFor(pa, "A")}}
	b := Dataset{Products: []ProductMeta{metaFor(pb, "B")}}

	newMatcher := func() *Matcher {
		return &Matcher{
			Criteria: []Criterion{
				DatetimeCriterion{Threshold: 1, UnitStr: "s"},
				PointDistanceCriterion{Threshold: 200000, UnitStr: "m"},
			},
			Loader: loader,
		}
	}
	r1, err := newMatcher().Match(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := newMatcher().Match(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(r1.Pairs) != len(r2.Pairs) {
		t.Fatalf("non-deterministic pair count: %d vs %d", len(r1.Pairs), len(r2.Pairs))
	}
	for i := range r1.Pairs {
		if r1.Pairs[i].CollocationIndex != r2.Pairs[i].CollocationIndex {
			t.Errorf("collocation_index differs across runs at %d: %d vs %d",
				i, r1.Pairs[i].CollocationIndex, r2.Pairs[i].CollocationIndex)
		}
	}
}

// Symmetry: swapping A and B (and the NN side) yields the same pairs
// with sides swapped.
func TestMatchSymmetry(t *testing.T) {
	pa := newProduct(t, "A", []float64{0}, []float64{0}, []float64{0})
	pb := newProduct(t, "B", []float64{0, 0, 0},
		[]float64{0.0009, 0.0018, 0.0045}, []float64{0, 0, 0})
	loader := memLoader(map[string]*harp.Product{"A": pa, "B": pb})

	fwd := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		NN:       []NearestNeighbour{{Criterion: "point_distance", Side: ReduceA}},
		Loader:   loader,
	}
	resFwd, err := fwd.Match(context.Background(),
		Dataset{Products: []ProductMeta{metaFor(pa, "A")}},
		Dataset{Products: []ProductMeta{metaFor(pb, "B")}})
	if err != nil {
		t.Fatal(err)
	}

	rev := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		NN:       []NearestNeighbour{{Criterion: "point_distance", Side: ReduceB}},
		Loader:   loader,
	}
	resRev, err := rev.Match(context.Background(),
		Dataset{Products: []ProductMeta{metaFor(pb, "B")}},
		Dataset{Products: []ProductMeta{metaFor(pa, "A")}})
	if err != nil {
		t.Fatal(err)
	}

	if len(resFwd.Pairs) != 1 || len(resRev.Pairs) != 1 {
		t.Fatalf("expected 1 pair each way, got %d and %d", len(resFwd.Pairs), len(resRev.Pairs))
	}
	f, r := resFwd.Pairs[0], resRev.Pairs[0]
	if f.ProductA != r.ProductB || f.SampleA != r.SampleB || f.ProductB != r.ProductA || f.SampleB != r.SampleA {
		t.Errorf("expected swapped pairs, got %+v and %+v", f, r)
	}
	if f.Differences[0] != r.Differences[0] {
		t.Errorf("expected identical differences, got %v and %v", f.Differences[0], r.Differences[0])
	}
}

// Regression: an online nearest-neighbour update that replaces an
// earlier key's pair in place must not leave the result out of
// ascending collocation_index order, even though the replacement
// consumes a later index than a still-unbeaten pair appended between
// the key's first and winning candidate.
func TestMatchNearestNeighbourAscendingIndexOrder(t *testing.T) {
	pa := newProduct(t, "A", []float64{0, 0}, []float64{0.0005, 0.0001}, []float64{0, 0})
	pb := newProduct(t, "B", []float64{0, 0}, []float64{0, 0.0009}, []float64{0, 0})
	loader := memLoader(map[string]*harp.Product{"A": pa, "B": pb})
	a := Dataset{Products: []ProductMeta{metaFor(pa, "A")}}
	b := Dataset{Products: []ProductMeta{metaFor(pb, "B")}}

	m := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		NN:       []NearestNeighbour{{Criterion: "point_distance", Side: ReduceB}},
		Loader:   loader,
	}
	result, err := m.Match(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Pairs) != 2 {
		t.Fatalf("expected 2 surviving pairs (one per B sample), got %d", len(result.Pairs))
	}
	for i := 1; i < len(result.Pairs); i++ {
		if result.Pairs[i-1].CollocationIndex >= result.Pairs[i].CollocationIndex {
			t.Errorf("pairs not in ascending collocation_index order: %+v", result.Pairs)
		}
	}
}

func TestMatchCancellation(t *testing.T) {
	pa := newProduct(t, "A", []float64{0}, []float64{0}, []float64{0})
	pb := newProduct(t, "B", []float64{0}, []float64{0}, []float64{0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &Matcher{
		Criteria: []Criterion{PointDistanceCriterion{Threshold: 1000, UnitStr: "m"}},
		Loader:   memLoader(map[string]*harp.Product{"A": pa, "B": pb}),
	}
	_, err := m.Match(ctx, Dataset{Products: []ProductMeta{metaFor(pa, "A")}}, Dataset{Products: []ProductMeta{metaFor(pb, "B")}})
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
}
