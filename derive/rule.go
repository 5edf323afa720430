// Package derive synthesizes a requested (name, dims, unit) variable
// from a static rule database by depth-first search, memoizing within
// a single Derive call and breaking ties by rule declaration order.
// The rules themselves are data; this package only specifies the
// engine that walks them, plus a small illustrative set of physical
// identities sufficient to exercise it.
package derive

import harp "github.com/stcorp/harp-go"

// Input names a variable a Rule needs, with the unit and dimensions
// the rule's expression expects it in.
type Input struct {
	Name string
	Unit string
	Dims []harp.Dimension
}

// Rule is one algebraic identity in the rule database: it produces
// OutputName from Inputs by evaluating Expr (a github.com/Knetic/govaluate
// expression over the input names, evaluated once per element of the
// broadcast output shape).
type Rule struct {
	OutputName string
	OutputUnit string
	OutputDims []harp.Dimension
	Inputs     []Input
	Expr       string
}

func dimsEqual(a, b []harp.Dimension) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
