package netcdf

import (
	"path/filepath"
	"testing"

	harp "github.com/stcorp/harp-go"
)

func buildProduct(t *testing.T) *harp.Product {
	t.Helper()
	p := harp.NewProduct("test-product")
	p.History = "created by a test"

	temp, err := harp.NewVariable("temperature", harp.F64, []harp.Dimension{harp.Time}, []int{3})
	if err != nil {
		t.Fatal(err)
	}
	temp.Unit = "K"
	temp.Description = "air temperature"
	temp.ValidRange = &[2]float64{150, 350}
	fill := -999.0
	temp.FillValue = &fill
	for i, v := range []float64{288.1, 289.2, 290.3} {
		temp.SetFloat(v, i)
	}
	if err := p.AddVariable(temp); err != nil {
		t.Fatal(err)
	}

	flag, err := harp.NewVariable("quality_flag", harp.I32, []harp.Dimension{harp.Time}, []int{3})
	if err != nil {
		t.Fatal(err)
	}
	flag.EnumLabels = map[int]string{0: "good", 1: "bad"}
	for i, v := range []int{0, 0, 1} {
		flag.SetInt(v, i)
	}
	if err := p.AddVariable(flag); err != nil {
		t.Fatal(err)
	}

	name, err := harp.NewVariable("station_name", harp.String, []harp.Dimension{harp.Time}, []int{3})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []string{"alpha", "beta", "alpha"} {
		name.SetString(v, i)
	}
	if err := p.AddVariable(name); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWriteReadRoundTrip(t *testing.T) {
	p := buildProduct(t)
	path := filepath.Join(t.TempDir(), "product.nc")
	if err := Write(path, p); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceProduct != p.SourceProduct {
		t.Errorf("source_product: got %q want %q", got.SourceProduct, p.SourceProduct)
	}
	if got.History != p.History {
		t.Errorf("history: got %q want %q", got.History, p.History)
	}

	temp, ok := got.Get("temperature")
	if !ok {
		t.Fatal("temperature missing after round trip")
	}
	if temp.Unit != "K" || temp.Description != "air temperature" {
		t.Errorf("temperature attributes lost: %+v", temp)
	}
	if temp.ValidRange == nil || *temp.ValidRange != [2]float64{150, 350} {
		t.Errorf("valid_range lost: %+v", temp.ValidRange)
	}
	for i, want := range []float64{288.1, 289.2, 290.3} {
		if got := temp.GetFloat(i); abs(got-want) > 1e-4 {
			t.Errorf("temperature[%d]: got %v want %v", i, got, want)
		}
	}

	flag, ok := got.Get("quality_flag")
	if !ok {
		t.Fatal("quality_flag missing after round trip")
	}
	if flag.EnumLabels[1] != "bad" {
		t.Errorf("enum_labels lost: %+v", flag.EnumLabels)
	}

	name, ok := got.Get("station_name")
	if !ok {
		t.Fatal("station_name missing after round trip")
	}
	for i, want := range []string{"alpha", "beta", "alpha"} {
		if got := name.GetString(i); got != want {
			t.Errorf("station_name[%d]: got %q want %q", i, got, want)
		}
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
