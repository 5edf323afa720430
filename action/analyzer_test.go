package action

import "testing"

func analyzeSrc(t *testing.T, src string) ([]Action, error) {
	t.Helper()
	al := parseAll(t, src)
	return Analyze(al)
}

func TestAnalyzeUnknownFunction(t *testing.T) {
	if _, err := analyzeSrc(t, `frobnicate(a)`); err == nil {
		t.Error("expected an unknown-function error")
	}
}

func TestAnalyzeWrongArity(t *testing.T) {
	if _, err := analyzeSrc(t, `valid-range(a, b)`); err == nil {
		t.Error("expected an arity error")
	}
}

func TestAnalyzeIncludeRejectsDimmedName(t *testing.T) {
	if _, err := analyzeSrc(t, `include(pressure{time})`); err == nil {
		t.Error("expected include() to reject a dimensioned name")
	}
}

func TestAnalyzeDeriveRequiresDims(t *testing.T) {
	if _, err := analyzeSrc(t, `derive(number_density)`); err == nil {
		t.Error("expected derive() to require a dimension list")
	}
}

func TestAnalyzeComparisonRejectsStringOrdering(t *testing.T) {
	if _, err := analyzeSrc(t, `quality_flag < "bad"`); err == nil {
		t.Error("expected string operand on < to be rejected")
	}
	actions, err := analyzeSrc(t, `quality_flag = "bad"`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := actions[0].(StringComparisonFilter); !ok {
		t.Errorf("expected a StringComparisonFilter, got %T", actions[0])
	}
}

func TestAnalyzeMembershipMixedKindsRejected(t *testing.T) {
	// a membership list that mixes numbers and strings cannot be lexed
	// as a single literal kind by the parser's grammar for quantities vs
	// strings, but the analyzer must still reject a hand-built AST that
	// mixes kinds.
	mt := MembershipTest{Var: "x", Items: []Argument{Quantity{Value: 1}, StringLit{Value: "a"}}}
	if _, err := analyzeMembershipTest(mt); err == nil {
		t.Error("expected mixed-kind membership list to be rejected")
	}
}

func TestAnalyzeStringMembershipWithUnitRejected(t *testing.T) {
	mt := MembershipTest{Var: "flag", Items: []Argument{StringLit{Value: "bad"}}, Unit: "deg", HasUnit: true}
	if _, err := analyzeMembershipTest(mt); err == nil {
		t.Error("expected a unit on a string membership list to be rejected")
	}
}

func TestAnalyzeCollocationFilter(t *testing.T) {
	actions, err := analyzeSrc(t, `collocation-filter("pairs.csv", left)`)
	if err != nil {
		t.Fatal(err)
	}
	cf, ok := actions[0].(CollocationFilter)
	if !ok {
		t.Fatalf("expected CollocationFilter, got %T", actions[0])
	}
	if cf.Filename != "pairs.csv" || cf.Side != Left {
		t.Errorf("got %+v", cf)
	}
}

func TestAnalyzeLongitudeRangeDefaultsUnit(t *testing.T) {
	actions, err := analyzeSrc(t, `longitude-range(170, -170)`)
	if err != nil {
		t.Fatal(err)
	}
	lr := actions[0].(LongitudeRangeFilter)
	if lr.MinUnit != "deg" || lr.MaxUnit != "deg" {
		t.Errorf("expected default deg units, got %+v", lr)
	}
}
