package harp

import (
	"fmt"
	"regexp"

	"bitbucket.org/ctessum/sparse"
)

// ElementType is the scalar storage type of a Variable. All physical
// quantities are float-typed (F32, F64); the integer types carry
// indices, flags and enumerations.
type ElementType int

const (
	I8 ElementType = iota
	I16
	I32
	F32
	F64
	String
)

func (t ElementType) String() string {
	switch t {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case String:
		return "string"
	}
	return "unknown"
}

func (t ElementType) isFloat() bool {
	return t == F32 || t == F64
}

func (t ElementType) isInt() bool {
	return t == I8 || t == I16 || t == I32
}

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name is a legal variable name:
// [A-Za-z_][A-Za-z0-9_]*.
func ValidName(name string) bool {
	return name != "" && nameRE.MatchString(name)
}

// Variable is a named, typed N-dimensional array, plus metadata:
// dimension tags, an optional physical unit, and optional
// description/valid-range/fill-value/enum-label attributes.
type Variable struct {
	name string
	typ  ElementType
	dims []Dimension

	// floats backs Variable values for F32/F64 typed variables.
	floats *sparse.DenseArray
	// ints backs Variable values for I8/I16/I32 typed variables.
	ints *sparse.DenseArrayInt
	// strings backs Variable values for String typed variables, stored
	// row-major the same way sparse.DenseArray lays out floats.
	strings []string

	Unit        string
	Description string
	ValidRange  *[2]float64
	FillValue   *float64
	EnumLabels  map[int]string
}

// NewVariable allocates a zero-valued Variable of the given type, with
// one extent per entry in dims (len(dims) must equal len(extents)).
func NewVariable(name string, typ ElementType, dims []Dimension, extents []int) (*Variable, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("invalid variable name %q", name)
	}
	if len(dims) != len(extents) {
		return nil, fmt.Errorf("variable %q: %d dims but %d extents", name, len(dims), len(extents))
	}
	v := &Variable{name: name, typ: typ, dims: append([]Dimension(nil), dims...)}
	switch {
	case typ.isFloat():
		if len(extents) == 0 {
			v.floats = sparse.ZerosDense(1)
		} else {
			v.floats = sparse.ZerosDense(extents...)
		}
	case typ.isInt():
		if len(extents) == 0 {
			v.ints = sparse.ZerosDenseInt(1)
		} else {
			v.ints = sparse.ZerosDenseInt(extents...)
		}
	case typ == String:
		if len(extents) > 1 {
			return nil, fmt.Errorf("variable %q: string variables support rank <= 1", name)
		}
		n := 1
		for _, e := range extents {
			n *= e
		}
		v.strings = make([]string, n)
	default:
		return nil, fmt.Errorf("unknown element type %v", typ)
	}
	return v, nil
}

// Name returns the variable's name.
func (v *Variable) Name() string { return v.name }

// Type returns the variable's element type.
func (v *Variable) Type() ElementType { return v.typ }

// Dims returns the variable's ordered dimension tags. The caller must
// not mutate the returned slice.
func (v *Variable) Dims() []Dimension { return v.dims }

// Rank returns the number of axes (0 for a scalar variable).
func (v *Variable) Rank() int { return len(v.dims) }

// Shape returns the extent of each axis, in the same order as Dims. A
// scalar (rank 0) variable is stored as one element and reports [1].
func (v *Variable) Shape() []int {
	switch {
	case v.floats != nil:
		return v.floats.Shape
	case v.ints != nil:
		return v.ints.Shape
	default:
		// strings have no sparse-backed shape tracker; reconstruct is the
		// caller's job via Len, since string variables in this codebase
		// are always rank <= 1 in practice (names, source products).
		return []int{len(v.strings)}
	}
}

// Len returns the total element count (the product of Shape).
func (v *Variable) Len() int {
	n := 1
	for _, e := range v.Shape() {
		n *= e
	}
	return n
}

// DimExtent returns the extent at axis position i, matching Dims()[i].
func (v *Variable) DimExtent(i int) int { return v.Shape()[i] }

// GetFloat returns the value at index (valid only for F32/F64 variables).
func (v *Variable) GetFloat(index ...int) float64 {
	return v.floats.Get(index...)
}

// SetFloat sets the value at index (valid only for F32/F64 variables).
func (v *Variable) SetFloat(val float64, index ...int) {
	v.floats.Set(val, index...)
}

// GetInt returns the value at index (valid only for I8/I16/I32 variables).
func (v *Variable) GetInt(index ...int) int {
	return v.ints.Get(index...)
}

// SetInt sets the value at index (valid only for I8/I16/I32 variables).
func (v *Variable) SetInt(val int, index ...int) {
	v.ints.Set(val, index...)
}

// GetString returns the value at flat position i (valid only for
// String variables).
func (v *Variable) GetString(i int) string { return v.strings[i] }

// SetString sets the value at flat position i (valid only for String
// variables).
func (v *Variable) SetString(val string, i int) { v.strings[i] = val }

// IsFillValue reports whether val equals the variable's declared fill
// value, if any.
func (v *Variable) IsFillValue(val float64) bool {
	return v.FillValue != nil && val == *v.FillValue
}

// Clone makes a deep copy of the variable, including its data.
func (v *Variable) Clone() *Variable {
	c := &Variable{
		name: v.name,
		typ:  v.typ,
		dims: append([]Dimension(nil), v.dims...),
		Unit: v.Unit, Description: v.Description,
	}
	if v.floats != nil {
		c.floats = v.floats.Copy()
	}
	if v.ints != nil {
		ic := *v.ints
		ic.Elements = append([]int(nil), v.ints.Elements...)
		c.ints = &ic
	}
	if v.strings != nil {
		c.strings = append([]string(nil), v.strings...)
	}
	if v.ValidRange != nil {
		r := *v.ValidRange
		c.ValidRange = &r
	}
	if v.FillValue != nil {
		f := *v.FillValue
		c.FillValue = &f
	}
	if v.EnumLabels != nil {
		c.EnumLabels = make(map[int]string, len(v.EnumLabels))
		for k, val := range v.EnumLabels {
			c.EnumLabels[k] = val
		}
	}
	return c
}

// HasDimension reports whether d appears anywhere in the variable's
// dimension list.
func (v *Variable) HasDimension(d Dimension) bool {
	for _, dd := range v.dims {
		if dd == d {
			return true
		}
	}
	return false
}

// axisIndexOf returns the axis position of d in the variable's
// dimension list, or -1 if absent.
func (v *Variable) axisIndexOf(d Dimension) int {
	for i, dd := range v.dims {
		if dd == d {
			return i
		}
	}
	return -1
}
