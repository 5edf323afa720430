// Package harperr defines the closed set of error kinds surfaced by
// every fallible operation in this module. Errors always carry enough
// context (offset, product, variable, criterion) to identify their
// source without parsing the message string.
package harperr

import "fmt"

// Kind is one of the stable error categories a caller can switch on.
type Kind int

const (
	// KindSyntax is a lexing or parsing failure in the action DSL.
	KindSyntax Kind = iota
	// KindScript is a semantic error found while analyzing an action AST.
	KindScript
	// KindUnit is an incompatible or unparsable unit.
	KindUnit
	// KindDerivation is a failure to synthesize a requested variable.
	KindDerivation
	// KindVariable is a missing, duplicate or dimension-mismatched variable.
	KindVariable
	// KindCollocation is a matchup failure attributable to a product pair
	// or criterion.
	KindCollocation
	// KindIO is a failure from an I/O collaborator.
	KindIO
	// KindOutOfMemory is fatal and never recovered.
	KindOutOfMemory
	// KindCancelled is a cooperative cancellation.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindScript:
		return "script error"
	case KindUnit:
		return "unit error"
	case KindDerivation:
		return "derivation error"
	case KindVariable:
		return "variable error"
	case KindCollocation:
		return "collocation error"
	case KindIO:
		return "I/O error"
	case KindOutOfMemory:
		return "out of memory"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown error"
}

// Error is the structured error type every fallible operation in this
// module returns. Use errors.As to recover it and inspect its fields.
type Error struct {
	Kind Kind
	Msg  string

	// Offset is set for KindSyntax and KindScript: the byte offset into
	// the source action string where the problem was found.
	Offset int
	HasOffset bool

	// From/To are set for KindUnit.
	From, To string

	// Name, Dims, Unit, Trace are set for KindDerivation; Name is also
	// set for KindVariable.
	Name  string
	Dims  []string
	Unit  string
	Trace []string

	// Reason is set for KindVariable and KindIO.
	Reason string

	// ProductA, ProductB, Criterion are set for KindCollocation.
	ProductA, ProductB, Criterion string

	// Path is set for KindIO.
	Path string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSyntax, KindScript:
		if e.HasOffset {
			return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Msg)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case KindUnit:
		return fmt.Sprintf("%s: cannot convert %q to %q: %s", e.Kind, e.From, e.To, e.Msg)
	case KindDerivation:
		return fmt.Sprintf("%s: cannot derive %q%v [%s]: %s", e.Kind, e.Name, e.Dims, e.Unit, e.Msg)
	case KindVariable:
		return fmt.Sprintf("%s: %q: %s", e.Kind, e.Name, e.Reason)
	case KindCollocation:
		return fmt.Sprintf("%s: %s/%s criterion %s: %s", e.Kind, e.ProductA, e.ProductB, e.Criterion, e.Msg)
	case KindIO:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Reason)
	default:
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
		}
		return e.Kind.String()
	}
}

// Syntax builds a KindSyntax error at the given byte offset.
func Syntax(offset int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindSyntax, Msg: fmt.Sprintf(format, args...), Offset: offset, HasOffset: true}
}

// Script builds a KindScript error at the given byte offset.
func Script(offset int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindScript, Msg: fmt.Sprintf(format, args...), Offset: offset, HasOffset: true}
}

// Unit builds a KindUnit error.
func Unit(from, to, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnit, From: from, To: to, Msg: fmt.Sprintf(format, args...)}
}

// Derivation builds a KindDerivation error.
func Derivation(name, unit string, dims []string, trace []string) *Error {
	return &Error{Kind: KindDerivation, Name: name, Dims: dims, Unit: unit, Trace: trace,
		Msg: "exhausted rule search"}
}

// Variable builds a KindVariable error.
func Variable(name, reason string) *Error {
	return &Error{Kind: KindVariable, Name: name, Reason: reason}
}

// Collocation builds a KindCollocation error.
func Collocation(productA, productB, criterion, format string, args ...interface{}) *Error {
	return &Error{Kind: KindCollocation, ProductA: productA, ProductB: productB, Criterion: criterion,
		Msg: fmt.Sprintf(format, args...)}
}

// IO builds a KindIO error.
func IO(path, format string, args ...interface{}) *Error {
	return &Error{Kind: KindIO, Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Cancelled is the sentinel returned by cooperative cancellation checks.
var Cancelled = &Error{Kind: KindCancelled, Msg: "operation cancelled"}

// OutOfMemory is the sentinel for fatal allocation failure.
var OutOfMemory = &Error{Kind: KindOutOfMemory, Msg: "out of memory"}
