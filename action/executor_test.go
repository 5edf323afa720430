package action

import (
	"testing"

	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/derive"
)

func floatVar(t *testing.T, name string, dims []harp.Dimension, shape []int, unitStr string, vals []float64) *harp.Variable {
	t.Helper()
	v, err := harp.NewVariable(name, harp.F64, dims, shape)
	if err != nil {
		t.Fatal(err)
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(vals) != n {
		t.Fatalf("%s: %d values for %d elements", name, len(vals), n)
	}
	idx := make([]int, len(shape))
	flat := 0
	var rec func(pos int)
	rec = func(pos int) {
		if pos == len(shape) {
			v.SetFloat(vals[flat], idx...)
			flat++
			return
		}
		for i := 0; i < shape[pos]; i++ {
			idx[pos] = i
			rec(pos + 1)
		}
	}
	rec(0)
	v.Unit = unitStr
	return v
}

func intVar(t *testing.T, name string, vals []int) *harp.Variable {
	t.Helper()
	v, err := harp.NewVariable(name, harp.I32, []harp.Dimension{harp.Time}, []int{len(vals)})
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range vals {
		v.SetInt(x, i)
	}
	return v
}

func run(t *testing.T, p *harp.Product, src string, ctx *Context) {
	t.Helper()
	al := parseAll(t, src)
	actions, err := Analyze(al)
	if err != nil {
		t.Fatalf("analyze %q: %v", src, err)
	}
	if err := Execute(p, actions, ctx); err != nil {
		t.Fatalf("execute %q: %v", src, err)
	}
}

func TestScenarioComparisonAndInclusion(t *testing.T) {
	p := harp.NewProduct("comparison")
	p.AddVariable(intVar(t, "index", []int{0, 1, 2, 3, 4}))
	p.AddVariable(floatVar(t, "temperature", []harp.Dimension{harp.Time}, []int{5}, "K", []float64{250, 260, 270, 280, 290}))
	p.AddVariable(floatVar(t, "pressure", []harp.Dimension{harp.Time}, []int{5}, "hPa", []float64{10, 20, 30, 40, 50}))

	run(t, p, `temperature >= 265[K]; include(pressure, temperature)`, nil)

	idx := p.MustGet("index")
	if idx.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", idx.Len())
	}
	wantIdx := []int{2, 3, 4}
	for i, w := range wantIdx {
		if idx.GetInt(i) != w {
			t.Errorf("index[%d] = %d, want %d", i, idx.GetInt(i), w)
		}
	}
	temp := p.MustGet("temperature")
	wantT := []float64{270, 280, 290}
	for i, w := range wantT {
		if temp.GetFloat(i) != w {
			t.Errorf("temperature[%d] = %v, want %v", i, temp.GetFloat(i), w)
		}
	}
	pres := p.MustGet("pressure")
	wantP := []float64{30, 40, 50}
	for i, w := range wantP {
		if pres.GetFloat(i) != w {
			t.Errorf("pressure[%d] = %v, want %v", i, pres.GetFloat(i), w)
		}
	}
	if p.Has("index") == false {
		t.Error("index must survive inclusion as a structurally required variable")
	}
}

func TestScenarioLongitudeAntimeridian(t *testing.T) {
	p := harp.NewProduct("antimeridian")
	p.AddVariable(floatVar(t, "longitude", []harp.Dimension{harp.Time}, []int{3}, "deg", []float64{-179, 179, 0}))

	run(t, p, `longitude-range(170[deg], -170[deg])`, nil)

	lon := p.MustGet("longitude")
	if lon.Len() != 2 {
		t.Fatalf("expected 2 rows kept, got %d", lon.Len())
	}
	want := []float64{-179, 179}
	for i, w := range want {
		if lon.GetFloat(i) != w {
			t.Errorf("longitude[%d] = %v, want %v", i, lon.GetFloat(i), w)
		}
	}
}

// Derivation, including the idempotence property: rerunning the
// action is a no-op.
func TestScenarioDerivation(t *testing.T) {
	p := harp.NewProduct("derivation")
	p.AddVariable(floatVar(t, "pressure", []harp.Dimension{harp.Time, harp.Vertical}, []int{1, 1}, "hPa", []float64{1013.25}))
	p.AddVariable(floatVar(t, "temperature", []harp.Dimension{harp.Time, harp.Vertical}, []int{1, 1}, "K", []float64{288}))

	eng := derive.NewEngine(derive.BuiltinRules, nil)
	ctx := &Context{Derive: eng}

	run(t, p, `derive(number_density{time, vertical}[molec/cm3])`, ctx)

	nd, ok := p.Get("number_density")
	if !ok {
		t.Fatal("number_density was not derived")
	}
	if nd.Unit != "molec/cm3" {
		t.Errorf("unit = %q, want molec/cm3", nd.Unit)
	}
	first := nd.GetFloat(0, 0)

	run(t, p, `derive(number_density{time, vertical}[molec/cm3])`, ctx)
	second := p.MustGet("number_density").GetFloat(0, 0)
	if first != second {
		t.Errorf("rerunning derive changed the value: %v vs %v", first, second)
	}
}

// Executor idempotence properties.
func TestExecutorValidRangeNoOp(t *testing.T) {
	p := harp.NewProduct("vr")
	temp := floatVar(t, "temperature", []harp.Dimension{harp.Time}, []int{4}, "K", []float64{260, 270, 280, 290})
	rng := [2]float64{265, 285}
	temp.ValidRange = &rng
	p.AddVariable(temp)

	run(t, p, `temperature >= 265[K]; temperature <= 285[K]`, nil)
	before := p.MustGet("temperature").Len()

	run(t, p, `valid-range(temperature)`, nil)
	after := p.MustGet("temperature").Len()
	if before != after {
		t.Errorf("valid-range after matching comparisons changed row count: %d -> %d", before, after)
	}
}

func TestExecutorInclusionExclusionIdempotent(t *testing.T) {
	p := harp.NewProduct("ie")
	p.AddVariable(floatVar(t, "a", []harp.Dimension{harp.Time}, []int{2}, "K", []float64{1, 2}))
	p.AddVariable(floatVar(t, "b", []harp.Dimension{harp.Time}, []int{2}, "K", []float64{1, 2}))
	p.AddVariable(floatVar(t, "c", []harp.Dimension{harp.Time}, []int{2}, "K", []float64{1, 2}))

	run(t, p, `include(a, b, c); include(a, b)`, nil)
	if p.Has("c") {
		t.Error("c should have been dropped by the second inclusion")
	}
	if !p.Has("a") || !p.Has("b") {
		t.Error("a and b should survive both inclusions")
	}

	q := harp.NewProduct("ie2")
	q.AddVariable(floatVar(t, "x", []harp.Dimension{harp.Time}, []int{2}, "K", []float64{1, 2}))
	run(t, q, `exclude(x); exclude(x)`, nil)
	if q.Has("x") {
		t.Error("x should be excluded")
	}
}
