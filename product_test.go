package harp

import "testing"

func newFloatVar(t *testing.T, name string, dim Dimension, unit string, vals []float64) *Variable {
	t.Helper()
	v, err := NewVariable(name, F64, []Dimension{dim}, []int{len(vals)})
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range vals {
		v.SetFloat(x, i)
	}
	v.Unit = unit
	return v
}

func newIntVar(t *testing.T, name string, dim Dimension, vals []int) *Variable {
	t.Helper()
	v, err := NewVariable(name, I32, []Dimension{dim}, []int{len(vals)})
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range vals {
		v.SetInt(x, i)
	}
	return v
}

func TestAddVariableDimensionAgreement(t *testing.T) {
	p := NewProduct("src-1")
	if err := p.AddVariable(newFloatVar(t, "temperature", Time, "K", []float64{1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	// disagreeing time extent must fail
	bad := newFloatVar(t, "pressure", Time, "hPa", []float64{1, 2})
	if err := p.AddVariable(bad); err == nil {
		t.Error("expected dimension-mismatch error")
	}
	if err := p.AddVariable(newFloatVar(t, "pressure", Time, "hPa", []float64{10, 20, 30})); err != nil {
		t.Fatal(err)
	}
	if err := p.AssertInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestAddVariableDuplicateName(t *testing.T) {
	p := NewProduct("src-1")
	v := newFloatVar(t, "temperature", Time, "K", []float64{1})
	if err := p.AddVariable(v); err != nil {
		t.Fatal(err)
	}
	if err := p.AddVariable(v.Clone()); err == nil {
		t.Error("expected duplicate-name error")
	}
}

func TestRemoveRenameVariable(t *testing.T) {
	p := NewProduct("src-1")
	p.AddVariable(newFloatVar(t, "temperature", Time, "K", []float64{1, 2}))
	if err := p.RenameVariable("temperature", "temp"); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Get("temperature"); ok {
		t.Error("old name should be gone")
	}
	if _, ok := p.Get("temp"); !ok {
		t.Error("new name should exist")
	}
	if err := p.RemoveVariable("temp"); err != nil {
		t.Fatal(err)
	}
	if p.Has("temp") {
		t.Error("variable should have been removed")
	}
	if err := p.RemoveVariable("temp"); err == nil {
		t.Error("expected error removing nonexistent variable")
	}
}

func TestFilterTimeAtomic(t *testing.T) {
	p := NewProduct("src-1")
	p.AddVariable(newIntVar(t, "index", Time, []int{0, 1, 2, 3, 4}))
	p.AddVariable(newFloatVar(t, "temperature", Time, "K", []float64{250, 260, 270, 280, 290}))
	p.AddVariable(newFloatVar(t, "pressure", Time, "hPa", []float64{10, 20, 30, 40, 50}))

	mask := []bool{false, false, true, true, true}
	if err := p.FilterTime(mask); err != nil {
		t.Fatal(err)
	}
	idx := p.MustGet("index")
	if idx.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", idx.Len())
	}
	want := []int{2, 3, 4}
	for i, w := range want {
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
}

func TestAppendTime(t *testing.T) {
	p := NewProduct("src-1")
	p.AddVariable(newFloatVar(t, "temperature", Time, "K", []float64{1, 2}))

	q := NewProduct("src-1")
	q.AddVariable(newFloatVar(t, "temperature", Time, "K", []float64{3, 4, 5}))

	if err := p.AppendTime(q); err != nil {
		t.Fatal(err)
	}
	temp := p.MustGet("temperature")
	if temp.Len() != 5 {
		t.Fatalf("expected 5 rows after append, got %d", temp.Len())
	}
	for i, w := range []float64{1, 2, 3, 4, 5} {
		if temp.GetFloat(i) != w {
			t.Errorf("temperature[%d] = %v, want %v", i, temp.GetFloat(i), w)
		}
	}
}
