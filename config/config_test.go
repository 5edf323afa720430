package config

import (
	"strings"
	"testing"

	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/collocate"
	"github.com/stcorp/harp-go/derive"
)

const sampleTOML = `
[default_units]
pressure = "hPa"

[derivation]
max_search_depth = 4

[geometry]
tolerance_meters = 10.0

[[collocation.nearest_neighbour]]
criterion = "point_distance"
side = "a"

[[collocation.nearest_neighbour]]
criterion = "datetime"
side = "b"
`

func TestDecode(t *testing.T) {
	cfg, err := Decode(strings.NewReader(sampleTOML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultUnits["pressure"] != "hPa" {
		t.Errorf("default_units: got %+v", cfg.DefaultUnits)
	}
	if cfg.Derivation.MaxSearchDepth != 4 {
		t.Errorf("max_search_depth: got %d", cfg.Derivation.MaxSearchDepth)
	}
	if cfg.Geometry.ToleranceMeters != 10.0 {
		t.Errorf("tolerance_meters: got %v", cfg.Geometry.ToleranceMeters)
	}
	dirs, err := cfg.Directives()
	if err != nil {
		t.Fatal(err)
	}
	want := []collocate.NearestNeighbour{
		{Criterion: "point_distance", Side: collocate.ReduceA},
		{Criterion: "datetime", Side: collocate.ReduceB},
	}
	if len(dirs) != len(want) {
		t.Fatalf("got %d directives, want %d", len(dirs), len(want))
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("directive %d: got %+v want %+v", i, dirs[i], want[i])
		}
	}
}

func TestApplyDerivationLimits(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[derivation]
max_search_depth = 1
`))
	if err != nil {
		t.Fatal(err)
	}
	e := derive.NewEngine(derive.BuiltinRules, nil)
	cfg.ApplyDerivationLimits(e)

	p := harp.NewProduct("limits")
	pressure, err := harp.NewVariable("pressure", harp.F64, []harp.Dimension{harp.Time, harp.Vertical}, []int{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	pressure.Unit = "hPa"
	pressure.SetFloat(1000, 0, 0)
	if err := p.AddVariable(pressure); err != nil {
		t.Fatal(err)
	}
	temperature, err := harp.NewVariable("temperature", harp.F64, []harp.Dimension{harp.Time, harp.Vertical}, []int{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	temperature.Unit = "K"
	temperature.SetFloat(288, 0, 0)
	if err := p.AddVariable(temperature); err != nil {
		t.Fatal(err)
	}
	molarMass, err := harp.NewVariable("molar_mass", harp.F64, []harp.Dimension{harp.Time, harp.Vertical}, []int{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	molarMass.Unit = "kg/mol"
	molarMass.SetFloat(0.029, 0, 0)
	if err := p.AddVariable(molarMass); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Derive(p, "mass_density", []harp.Dimension{harp.Time, harp.Vertical}, "kg/m3"); err == nil {
		t.Error("expected max_search_depth = 1 to reject deriving mass_density via number_density")
	}
}

func TestAreaIntersectsCriterionUsesConfiguredTolerance(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[geometry]
tolerance_meters = 50
`))
	if err != nil {
		t.Fatal(err)
	}
	c := cfg.AreaIntersectsCriterion()
	if c.ToleranceMeters != 50 {
		t.Errorf("ToleranceMeters = %v, want 50", c.ToleranceMeters)
	}
}

func TestDecodeRejectsThreeDirectives(t *testing.T) {
	src := sampleTOML + `
[[collocation.nearest_neighbour]]
criterion = "area_intersects"
side = "a"
`
	if _, err := Decode(strings.NewReader(src)); err == nil {
		t.Error("expected more than two nearest_neighbour directives to be rejected")
	}
}

func TestDecodeRejectsBadSide(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
[[collocation.nearest_neighbour]]
criterion = "point_distance"
side = "left"
`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Directives(); err == nil {
		t.Error("expected an invalid side to be rejected")
	}
}
