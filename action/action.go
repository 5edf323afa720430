package action

import harp "github.com/stcorp/harp-go"

// Side names which side of a collocation result a CollocationFilter
// joins against.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// BitMaskOp is the predicate a BitMaskFilter applies.
type BitMaskOp int

const (
	AllBitsInMaskSet BitMaskOp = iota
	NoBitInMaskSet
)

// Action is the tagged union of every lowered, typed action this
// package supports. Each variant owns its arguments; there is no
// observable lifetime tie to the AST it was lowered from.
type Action interface{ actionKind() string }

type CollocationFilter struct {
	Filename string
	Side     Side
}

func (CollocationFilter) actionKind() string { return "collocation-filter" }

type ComparisonFilter struct {
	Var     string
	Op      CompareOp
	Value   float64
	Unit    string
	HasUnit bool
}

func (ComparisonFilter) actionKind() string { return "comparison-filter" }

type StringComparisonFilter struct {
	Var   string
	Op    CompareOp // only OpEq or OpNe
	Value string
}

func (StringComparisonFilter) actionKind() string { return "string-comparison-filter" }

type BitMaskFilter struct {
	Var  string
	Op   BitMaskOp
	Mask uint32
}

func (BitMaskFilter) actionKind() string { return "bit-mask-filter" }

type MembershipFilter struct {
	Var     string
	Negate  bool
	Values  []float64
	Unit    string
	HasUnit bool
}

func (MembershipFilter) actionKind() string { return "membership-filter" }

type StringMembershipFilter struct {
	Var    string
	Negate bool
	Values []string
}

func (StringMembershipFilter) actionKind() string { return "string-membership-filter" }

type ValidRangeFilter struct {
	Var string
}

func (ValidRangeFilter) actionKind() string { return "valid-range-filter" }

type LongitudeRangeFilter struct {
	Min, Max         float64
	MinUnit, MaxUnit string
}

func (LongitudeRangeFilter) actionKind() string { return "longitude-range-filter" }

type PointDistanceFilter struct {
	Lon, Lat, Distance             float64
	LonUnit, LatUnit, DistanceUnit string
}

func (PointDistanceFilter) actionKind() string { return "point-distance-filter" }

type AreaMaskCoversPointFilter struct{ Filename string }

func (AreaMaskCoversPointFilter) actionKind() string { return "area-mask-covers-point-filter" }

type AreaMaskCoversAreaFilter struct{ Filename string }

func (AreaMaskCoversAreaFilter) actionKind() string { return "area-mask-covers-area-filter" }

type AreaMaskIntersectsAreaFilter struct {
	Filename       string
	MinFractionPct float64
}

func (AreaMaskIntersectsAreaFilter) actionKind() string { return "area-mask-intersects-area-filter" }

type VariableDerivation struct {
	Var     string
	Dims    []harp.Dimension
	Unit    string
	HasUnit bool
}

func (VariableDerivation) actionKind() string { return "variable-derivation" }

type VariableInclusion struct{ Names []string }

func (VariableInclusion) actionKind() string { return "variable-inclusion" }

type VariableExclusion struct{ Names []string }

func (VariableExclusion) actionKind() string { return "variable-exclusion" }
