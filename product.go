package harp

import (
	"fmt"

	"github.com/stcorp/harp-go/harperr"
)

// Product is an ordered mapping from variable name to Variable, plus
// source identity and lineage metadata. It is constructed by an
// ingestion back-end (out of scope here) and mutated only through the
// primitives below, which preserve the shared-dimension invariant
// across every size-changing operation.
type Product struct {
	// SourceProduct is a stable identifier across re-ingestion; it is
	// the join key collocation results are keyed on.
	SourceProduct string
	// History is an optional free-text lineage string.
	History string

	names []string
	vars  map[string]*Variable
}

// NewProduct creates an empty product for the given source identifier.
func NewProduct(sourceProduct string) *Product {
	return &Product{SourceProduct: sourceProduct, vars: map[string]*Variable{}}
}

// Names returns variable names in insertion order.
func (p *Product) Names() []string {
	return append([]string(nil), p.names...)
}

// Get returns the named variable, or (nil, false) if absent.
func (p *Product) Get(name string) (*Variable, bool) {
	v, ok := p.vars[name]
	return v, ok
}

// MustGet returns the named variable, panicking if absent. Intended
// for internal callers that have already validated existence.
func (p *Product) MustGet(name string) *Variable {
	v, ok := p.vars[name]
	if !ok {
		panic(fmt.Sprintf("harp: product %q has no variable %q", p.SourceProduct, name))
	}
	return v
}

// Has reports whether a variable by that name exists.
func (p *Product) Has(name string) bool {
	_, ok := p.vars[name]
	return ok
}

// dimExtent returns the extent this product has already committed to
// for dimension d, and whether any variable has claimed it yet.
func (p *Product) dimExtent(d Dimension) (int, bool) {
	for _, name := range p.names {
		v := p.vars[name]
		if axis := v.axisIndexOf(d); axis >= 0 {
			return v.Shape()[axis], true
		}
	}
	return 0, false
}

// AddVariable inserts v into the product. It fails with a KindVariable
// error if a same-named variable already exists, or if v disagrees
// with the product's established extent for any Dimension it shares
// with existing variables (the same-dimension rule).
func (p *Product) AddVariable(v *Variable) error {
	if p.Has(v.Name()) {
		return harperr.Variable(v.Name(), "a variable with this name already exists")
	}
	shape := v.Shape()
	for axis, d := range v.Dims() {
		if want, ok := p.dimExtent(d); ok && want != shape[axis] {
			return harperr.Variable(v.Name(), fmt.Sprintf("%s extent %d disagrees with product's existing %s extent %d", d, shape[axis], d, want))
		}
	}
	p.vars[v.Name()] = v
	p.names = append(p.names, v.Name())
	return nil
}

// RemoveVariable deletes the named variable. It fails with a
// KindVariable error if the name does not exist.
func (p *Product) RemoveVariable(name string) error {
	if !p.Has(name) {
		return harperr.Variable(name, "no such variable")
	}
	delete(p.vars, name)
	for i, n := range p.names {
		if n == name {
			p.names = append(p.names[:i], p.names[i+1:]...)
			break
		}
	}
	return nil
}

// RenameVariable renames oldName to newName. It fails with a
// KindVariable error if oldName is absent or newName is already taken.
func (p *Product) RenameVariable(oldName, newName string) error {
	if !p.Has(oldName) {
		return harperr.Variable(oldName, "no such variable")
	}
	if p.Has(newName) {
		return harperr.Variable(newName, "a variable with this name already exists")
	}
	if !ValidName(newName) {
		return harperr.Variable(newName, "invalid variable name")
	}
	v := p.vars[oldName]
	v.name = newName
	delete(p.vars, oldName)
	p.vars[newName] = v
	for i, n := range p.names {
		if n == oldName {
			p.names[i] = newName
			break
		}
	}
	return nil
}

// AppendTime appends other's rows to every time-dimensioned variable
// in p, atomically: either every applicable variable is extended or
// none are (on the first error, p is left unchanged). other must carry
// a matching variable (same name, type, dims) for every time-dimensioned
// variable already in p.
func (p *Product) AppendTime(other *Product) error {
	next := map[string]*Variable{}
	for _, name := range p.names {
		v := p.vars[name]
		if !v.HasDimension(Time) {
			continue
		}
		ov, ok := other.Get(name)
		if !ok {
			return harperr.Variable(name, "missing matching variable in appended product")
		}
		merged, err := v.AppendAxis(Time, ov)
		if err != nil {
			return harperr.Variable(name, err.Error())
		}
		next[name] = merged
	}
	for name, v := range next {
		p.vars[name] = v
	}
	return nil
}

// FilterTime drops rows along the time axis of every time-dimensioned
// variable for which mask is false, atomically across all of them.
// len(mask) must equal the product's time extent.
func (p *Product) FilterTime(mask []bool) error {
	extent, ok := p.dimExtent(Time)
	if ok && len(mask) != extent {
		return fmt.Errorf("harp: mask length %d does not match time extent %d", len(mask), extent)
	}
	next := map[string]*Variable{}
	for _, name := range p.names {
		v := p.vars[name]
		if !v.HasDimension(Time) {
			continue
		}
		filtered, err := v.FilterAxis(Time, mask)
		if err != nil {
			return err
		}
		next[name] = filtered
	}
	for name, v := range next {
		p.vars[name] = v
	}
	return nil
}

// AssertInvariants checks the product's structural invariants: unique
// names (guaranteed by construction) and dimension-extent agreement
// across every variable pair that shares a Dimension tag.
func (p *Product) AssertInvariants() error {
	extents := map[Dimension]int{}
	for _, name := range p.names {
		v := p.vars[name]
		for axis, d := range v.Dims() {
			e := v.Shape()[axis]
			if want, ok := extents[d]; ok {
				if want != e {
					return fmt.Errorf("harp: dimension %s has conflicting extents %d and %d (variable %q)", d, want, e, name)
				}
			} else {
				extents[d] = e
			}
		}
	}
	return nil
}

// Clone makes a deep copy of the product.
func (p *Product) Clone() *Product {
	c := &Product{SourceProduct: p.SourceProduct, History: p.History, vars: map[string]*Variable{}}
	c.names = append([]string(nil), p.names...)
	for k, v := range p.vars {
		c.vars[k] = v.Clone()
	}
	return c
}

// TimeExtent returns the product's time extent and whether any
// variable carries a time axis.
func (p *Product) TimeExtent() (int, bool) {
	return p.dimExtent(Time)
}
