package action

import (
	harp "github.com/stcorp/harp-go"
	"github.com/stcorp/harp-go/harperr"
)

// argKind classifies the lowered shape an analyzed function argument
// must take, independent of which concrete Argument type produced it.
type argKind int

const (
	kindString     argKind = iota
	kindBareName           // QualifiedName with neither dims nor unit
	kindQuantity           // Number, optional unit
	kindDimmedName         // QualifiedName with a dimension list, optional unit
)

// funcSpec describes one built-in function's arity and per-position
// argument kinds, and how to lower a validated argument list into an
// Action.
type funcSpec struct {
	kinds       []argKind // fixed-arity position kinds
	varKind     argKind   // if variadic, the kind every argument beyond len(kinds) must take
	variadicMin int       // minimum number of variadic arguments (0 means the fixed kinds suffice)
	build       func(pos int, args []Argument) (Action, error)
}

var functions map[string]funcSpec

func init() {
	functions = map[string]funcSpec{
		"include":                   {varKind: kindBareName, variadicMin: 1, build: buildInclude},
		"exclude":                   {varKind: kindBareName, variadicMin: 1, build: buildExclude},
		"derive":                    {kinds: []argKind{kindDimmedName}, build: buildDerive},
		"collocation-filter":        {kinds: []argKind{kindString, kindBareName}, build: buildCollocationFilter},
		"valid-range":               {kinds: []argKind{kindBareName}, build: buildValidRange},
		"longitude-range":           {kinds: []argKind{kindQuantity, kindQuantity}, build: buildLongitudeRange},
		"point-distance":            {kinds: []argKind{kindQuantity, kindQuantity, kindQuantity}, build: buildPointDistance},
		"area-mask-covers-point":    {kinds: []argKind{kindString}, build: buildAreaMaskCoversPoint},
		"area-mask-covers-area":     {kinds: []argKind{kindString}, build: buildAreaMaskCoversArea},
		"area-mask-intersects-area": {kinds: []argKind{kindString, kindQuantity}, build: buildAreaMaskIntersectsArea},
	}
}

// Analyze lowers every parsed statement in al into a typed Action,
// validating function dispatch, comparison, membership, derivation and
// include/exclude rules per the action analyzer's responsibilities.
// Errors identify the offending offset.
func Analyze(al *ActionList) ([]Action, error) {
	out := make([]Action, 0, len(al.Statements))
	for _, s := range al.Statements {
		a, err := analyzeStatement(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func analyzeStatement(s Statement) (Action, error) {
	switch v := s.(type) {
	case FunctionCall:
		return analyzeFunctionCall(v)
	case MembershipTest:
		return analyzeMembershipTest(v)
	case BitMaskTest:
		return analyzeBitMaskTest(v)
	case Comparison:
		return analyzeComparison(v)
	}
	return nil, harperr.Script(s.stmtPos(), "unrecognised statement")
}

func analyzeFunctionCall(fc FunctionCall) (Action, error) {
	spec, ok := functions[fc.Name]
	if !ok {
		return nil, harperr.Script(fc.Pos, "unknown function %q", fc.Name)
	}
	if spec.variadicMin > 0 {
		if len(fc.Args) < spec.variadicMin {
			return nil, harperr.Script(fc.Pos, "%s: expected at least %d argument(s), got %d", fc.Name, spec.variadicMin, len(fc.Args))
		}
		for _, a := range fc.Args {
			if err := checkArgKind(a, spec.varKind); err != nil {
				return nil, err
			}
		}
	} else {
		if len(fc.Args) != len(spec.kinds) {
			return nil, harperr.Script(fc.Pos, "%s: expected %d argument(s), got %d", fc.Name, len(spec.kinds), len(fc.Args))
		}
		for i, a := range fc.Args {
			if err := checkArgKind(a, spec.kinds[i]); err != nil {
				return nil, err
			}
		}
	}
	return spec.build(fc.Pos, fc.Args)
}

func checkArgKind(a Argument, want argKind) error {
	switch want {
	case kindString:
		if _, ok := a.(StringLit); !ok {
			return harperr.Script(a.argPos(), "expected a string argument")
		}
	case kindQuantity:
		if _, ok := a.(Quantity); !ok {
			return harperr.Script(a.argPos(), "expected a numeric argument")
		}
	case kindBareName:
		qn, ok := a.(QualifiedName)
		if !ok {
			return harperr.Script(a.argPos(), "expected a bare variable name")
		}
		if qn.HasDims || qn.HasUnit {
			return harperr.Script(a.argPos(), "%q: dimensions and units are not allowed here", qn.Name)
		}
	case kindDimmedName:
		qn, ok := a.(QualifiedName)
		if !ok {
			return harperr.Script(a.argPos(), "expected a name with a dimension list")
		}
		if !qn.HasDims {
			return harperr.Script(a.argPos(), "%q: a dimension list is required", qn.Name)
		}
	}
	return nil
}

func buildInclude(_ int, args []Argument) (Action, error) {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.(QualifiedName).Name
	}
	return VariableInclusion{Names: names}, nil
}

func buildExclude(_ int, args []Argument) (Action, error) {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.(QualifiedName).Name
	}
	return VariableExclusion{Names: names}, nil
}

func buildDerive(_ int, args []Argument) (Action, error) {
	qn := args[0].(QualifiedName)
	dims := make([]harp.Dimension, len(qn.Dims))
	for i, d := range qn.Dims {
		dim, ok := harp.ParseDimension(d)
		if !ok {
			return nil, harperr.Script(qn.Pos, "unknown dimension %q", d)
		}
		dims[i] = dim
	}
	return VariableDerivation{Var: qn.Name, Dims: dims, Unit: qn.Unit, HasUnit: qn.HasUnit}, nil
}

func buildCollocationFilter(_ int, args []Argument) (Action, error) {
	filename := args[0].(StringLit).Value
	sideName := args[1].(QualifiedName)
	var side Side
	switch sideName.Name {
	case "left":
		side = Left
	case "right":
		side = Right
	default:
		return nil, harperr.Script(sideName.Pos, "collocation-filter: side must be \"left\" or \"right\", got %q", sideName.Name)
	}
	return CollocationFilter{Filename: filename, Side: side}, nil
}

func buildValidRange(_ int, args []Argument) (Action, error) {
	return ValidRangeFilter{Var: args[0].(QualifiedName).Name}, nil
}

func buildLongitudeRange(_ int, args []Argument) (Action, error) {
	min := args[0].(Quantity)
	max := args[1].(Quantity)
	minUnit, maxUnit := min.Unit, max.Unit
	if !min.HasUnit {
		minUnit = "deg"
	}
	if !max.HasUnit {
		maxUnit = "deg"
	}
	return LongitudeRangeFilter{Min: min.Value, MinUnit: minUnit, Max: max.Value, MaxUnit: maxUnit}, nil
}

func buildPointDistance(_ int, args []Argument) (Action, error) {
	lon := args[0].(Quantity)
	lat := args[1].(Quantity)
	dist := args[2].(Quantity)
	lonUnit, latUnit, distUnit := lon.Unit, lat.Unit, dist.Unit
	if !lon.HasUnit {
		lonUnit = "deg"
	}
	if !lat.HasUnit {
		latUnit = "deg"
	}
	if !dist.HasUnit {
		distUnit = "m"
	}
	return PointDistanceFilter{
		Lon: lon.Value, LonUnit: lonUnit,
		Lat: lat.Value, LatUnit: latUnit,
		Distance: dist.Value, DistanceUnit: distUnit,
	}, nil
}

func buildAreaMaskCoversPoint(_ int, args []Argument) (Action, error) {
	return AreaMaskCoversPointFilter{Filename: args[0].(StringLit).Value}, nil
}

func buildAreaMaskCoversArea(_ int, args []Argument) (Action, error) {
	return AreaMaskCoversAreaFilter{Filename: args[0].(StringLit).Value}, nil
}

func buildAreaMaskIntersectsArea(_ int, args []Argument) (Action, error) {
	filename := args[0].(StringLit).Value
	pct := args[1].(Quantity)
	return AreaMaskIntersectsAreaFilter{Filename: filename, MinFractionPct: pct.Value}, nil
}

// analyzeComparison lowers a `var OP operand` statement. String
// operands on ordering operators are rejected; equality/inequality
// against a string yields a StringComparisonFilter.
func analyzeComparison(c Comparison) (Action, error) {
	switch v := c.Operand.(type) {
	case StringLit:
		if c.Op != OpEq && c.Op != OpNe {
			return nil, harperr.Script(c.Pos, "%s: string operands only support = and !=", c.Var)
		}
		return StringComparisonFilter{Var: c.Var, Op: c.Op, Value: v.Value}, nil
	case Quantity:
		return ComparisonFilter{Var: c.Var, Op: c.Op, Value: v.Value, Unit: v.Unit, HasUnit: v.HasUnit}, nil
	case QualifiedName:
		return nil, harperr.Script(c.Pos, "%s: a comparison operand must be a literal, not a variable reference", c.Var)
	}
	return nil, harperr.Script(c.Pos, "%s: unrecognised comparison operand", c.Var)
}

// analyzeMembershipTest lowers `var (in|not in) (lit, ...) [unit]`. All
// items must share one literal kind; string lists may not carry a unit.
func analyzeMembershipTest(m MembershipTest) (Action, error) {
	if len(m.Items) == 0 {
		return nil, harperr.Script(m.Pos, "%s: membership test requires at least one item", m.Var)
	}
	switch m.Items[0].(type) {
	case StringLit:
		if m.HasUnit {
			return nil, harperr.Script(m.Pos, "%s: a string membership list cannot carry a unit", m.Var)
		}
		values := make([]string, len(m.Items))
		for i, it := range m.Items {
			s, ok := it.(StringLit)
			if !ok {
				return nil, harperr.Script(it.argPos(), "%s: membership list items must share one literal kind", m.Var)
			}
			values[i] = s.Value
		}
		return StringMembershipFilter{Var: m.Var, Negate: m.Negate, Values: values}, nil
	case Quantity:
		values := make([]float64, len(m.Items))
		for i, it := range m.Items {
			q, ok := it.(Quantity)
			if !ok {
				return nil, harperr.Script(it.argPos(), "%s: membership list items must share one literal kind", m.Var)
			}
			values[i] = q.Value
		}
		return MembershipFilter{Var: m.Var, Negate: m.Negate, Values: values, Unit: m.Unit, HasUnit: m.HasUnit}, nil
	}
	return nil, harperr.Script(m.Pos, "%s: unrecognised membership item", m.Var)
}

func analyzeBitMaskTest(b BitMaskTest) (Action, error) {
	op := AllBitsInMaskSet
	if !b.Any {
		op = NoBitInMaskSet
	}
	return BitMaskFilter{Var: b.Var, Op: op, Mask: uint32(b.Mask)}, nil
}
