package derive

import (
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/sirupsen/logrus"

	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/harperr"
	"github.com/stcorp/harp-go/unit"
)

// Engine walks a fixed rule database to synthesize requested variables.
type Engine struct {
	rules    []Rule
	log      logrus.FieldLogger
	byName   map[string][]int // output name -> rule indices, in declaration order
	maxDepth int              // 0 means unlimited
}

// NewEngine builds an Engine over rules. log may be nil, in which case
// a logrus.StandardLogger is used.
func NewEngine(rules []Rule, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{rules: rules, log: log, byName: map[string][]int{}}
	for i, r := range rules {
		e.byName[r.OutputName] = append(e.byName[r.OutputName], i)
	}
	return e
}

// SetMaxDepth caps how many rules deep a single Derive/DeriveAny call
// may chain before giving up; 0 (the default) leaves the search
// unbounded.
func (e *Engine) SetMaxDepth(n int) {
	e.maxDepth = n
}

type memoKey struct {
	name string
	unit string
	dims string
}

func dimsKey(d []harp.Dimension) string {
	s := ""
	for _, dd := range d {
		s += dd.String() + ","
	}
	return s
}

// call carries the state of a single Derive invocation: its memo table
// and its in-progress set for cycle detection.
type call struct {
	e        *Engine
	product  *harp.Product
	memo     map[memoKey]*harp.Variable
	inFlight map[string]bool
	trace    []string
	// wantUnit is false for a DeriveAny call: no target unit was
	// requested, so the requested variable itself is not converted.
	// tryRule sets it while resolving a rule's inputs, which are always
	// converted to the units the rule declares.
	wantUnit bool
}

// Derive returns a variable named name, with the given dims and unit,
// either by finding it already present (with unit conversion) or by
// evaluating the best rule the rule database offers. It fails with a
// KindDerivation error if no rule, directly or transitively, can
// produce it.
func (e *Engine) Derive(product *harp.Product, name string, dims []harp.Dimension, unitStr string) (*harp.Variable, error) {
	c := &call{e: e, product: product, memo: map[memoKey]*harp.Variable{}, inFlight: map[string]bool{}, wantUnit: true}
	v, err := c.resolve(name, dims, unitStr)
	if err != nil {
		return nil, harperr.Derivation(name, unitStr, dimsStrings(dims), c.trace)
	}
	return v, nil
}

// DeriveAny is Derive without a target unit: the variable is returned
// in whichever unit the product already has it in, or the rule
// database's declared output unit for the winning rule. Used to lower
// an action derivation statement that omitted its unit.
func (e *Engine) DeriveAny(product *harp.Product, name string, dims []harp.Dimension) (*harp.Variable, error) {
	c := &call{e: e, product: product, memo: map[memoKey]*harp.Variable{}, inFlight: map[string]bool{}}
	v, err := c.resolve(name, dims, "")
	if err != nil {
		return nil, harperr.Derivation(name, "", dimsStrings(dims), c.trace)
	}
	return v, nil
}

func dimsStrings(d []harp.Dimension) []string {
	out := make([]string, len(d))
	for i, dd := range d {
		out[i] = dd.String()
	}
	return out
}

func (c *call) resolve(name string, dims []harp.Dimension, unitStr string) (*harp.Variable, error) {
	key := memoKey{name: name, unit: unitStr, dims: dimsKey(dims)}
	if v, ok := c.memo[key]; ok {
		return v, nil
	}

	// Step 1: the product may already carry a suitable variable.
	if existing, ok := c.product.Get(name); ok && dimsEqual(existing.Dims(), dims) {
		if !c.wantUnit {
			c.memo[key] = existing
			return existing, nil
		}
		if unit.IsCompatible(existing.Unit, unitStr) {
			v, err := convertUnit(existing, unitStr)
			if err != nil {
				return nil, err
			}
			c.memo[key] = v
			return v, nil
		}
	}

	if c.inFlight[name] {
		c.trace = append(c.trace, fmt.Sprintf("cycle detected deriving %q", name))
		return nil, fmt.Errorf("cycle deriving %q", name)
	}
	c.inFlight[name] = true
	defer delete(c.inFlight, name)

	// len(c.inFlight) is the current recursion depth: one entry per
	// name still being resolved on the call stack.
	if c.e.maxDepth > 0 && len(c.inFlight) > c.e.maxDepth {
		c.trace = append(c.trace, fmt.Sprintf("max search depth %d exceeded deriving %q", c.e.maxDepth, name))
		return nil, fmt.Errorf("max search depth %d exceeded deriving %q", c.e.maxDepth, name)
	}

	var matching []int
	for _, idx := range c.e.byName[name] {
		if dimsEqual(c.e.rules[idx].OutputDims, dims) {
			matching = append(matching, idx)
		}
	}
	candidates := preferInputsPresent(matching, c.e.rules, c.product)
	var best *harp.Variable
	var bestErr error
	for _, idx := range candidates {
		rule := c.e.rules[idx]
		v, err := c.tryRule(rule)
		if err != nil {
			c.trace = append(c.trace, fmt.Sprintf("rule %d for %q: %v", idx, name, err))
			if bestErr == nil {
				bestErr = err
			}
			continue
		}
		converted := v
		if c.wantUnit {
			var err error
			converted, err = convertUnit(v, unitStr)
			if err != nil {
				c.trace = append(c.trace, fmt.Sprintf("rule %d for %q: unit conversion: %v", idx, name, err))
				continue
			}
		}
		best = converted
		break // declaration order ties broken by first success
	}
	if best == nil {
		if bestErr == nil {
			bestErr = fmt.Errorf("no rule produces %q with dims %v", name, dims)
		}
		return nil, bestErr
	}
	c.memo[key] = best
	if !c.product.Has(name) {
		if err := c.product.AddVariable(best); err != nil {
			return nil, err
		}
	}
	return best, nil
}

// preferInputsPresent partitions candidates (rule indices into rules,
// already filtered to matching output dims) into those whose inputs
// are all already present in product and those needing further
// derivation, trying the former ahead of the latter. Declaration order
// is preserved within each partition and is the only tie-break within
// it; it does not cross partitions.
func preferInputsPresent(candidates []int, rules []Rule, product *harp.Product) []int {
	var present, needDerivation []int
	for _, idx := range candidates {
		allPresent := true
		for _, in := range rules[idx].Inputs {
			if !product.Has(in.Name) {
				allPresent = false
				break
			}
		}
		if allPresent {
			present = append(present, idx)
		} else {
			needDerivation = append(needDerivation, idx)
		}
	}
	return append(present, needDerivation...)
}

// tryRule resolves rule's inputs, recursing to derive any that are not
// already present in the product, then evaluates the rule's expression.
func (c *call) tryRule(rule Rule) (*harp.Variable, error) {
	outer := c.wantUnit
	c.wantUnit = true
	defer func() { c.wantUnit = outer }()
	inputs := make(map[string]*harp.Variable, len(rule.Inputs))
	for _, in := range rule.Inputs {
		v, err := c.resolve(in.Name, in.Dims, in.Unit)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		inputs[in.Name] = v
	}
	return evalRule(rule, inputs)
}

func convertUnit(v *harp.Variable, toUnit string) (*harp.Variable, error) {
	if v.Unit == toUnit || (v.Unit == "" && toUnit == "1") {
		return v, nil
	}
	factor, err := unit.Factor(v.Unit, toUnit)
	if err != nil {
		return nil, err
	}
	if factor == 1 {
		c := v.Clone()
		c.Unit = toUnit
		return c, nil
	}
	c := v.Clone()
	shape := c.Shape()
	eachScale(c, shape, factor)
	c.Unit = toUnit
	return c, nil
}

func eachScale(v *harp.Variable, shape []int, factor float64) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	idx := make([]int, len(shape))
	for flat := 0; flat < n; flat++ {
		unflatten(flat, shape, idx)
		v.SetFloat(v.GetFloat(idx...)*factor, idx...)
	}
}

func unflatten(flat int, shape, idx []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		idx[i] = flat % shape[i]
		flat /= shape[i]
	}
}

// evalRule evaluates rule.Expr once per element of the broadcast
// output shape (the shape of its first input), substituting each
// input variable's value at that element.
func evalRule(rule Rule, inputs map[string]*harp.Variable) (*harp.Variable, error) {
	expr, err := govaluate.NewEvaluableExpression(rule.Expr)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.OutputName, err)
	}
	var shape []int
	for _, in := range rule.Inputs {
		shape = inputs[in.Name].Shape()
		break
	}
	out, err := harp.NewVariable(rule.OutputName, harp.F64, rule.OutputDims, shape)
	if err != nil {
		return nil, err
	}
	out.Unit = rule.OutputUnit

	n := 1
	for _, s := range shape {
		n *= s
	}
	idx := make([]int, len(shape))
	params := make(map[string]interface{}, len(rule.Inputs))
	for flat := 0; flat < n; flat++ {
		unflatten(flat, shape, idx)
		for name, v := range inputs {
			params[name] = v.GetFloat(idx...)
		}
		res, err := expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.OutputName, err)
		}
		f, ok := res.(float64)
		if !ok {
			return nil, fmt.Errorf("rule %q: expression did not evaluate to a number", rule.OutputName)
		}
		out.SetFloat(f, idx...)
	}
	return out, nil
}
