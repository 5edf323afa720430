package action

import (
	"strconv"
	"strings"
)

// String pretty-prints the action list back into DSL source. Parsing
// the result reproduces an AST equal to the original up to whitespace.
func (al *ActionList) String() string {
	parts := make([]string, len(al.Statements))
	for i, s := range al.Statements {
		parts[i] = printStatement(s)
	}
	return strings.Join(parts, "; ")
}

func printStatement(s Statement) string {
	switch v := s.(type) {
	case FunctionCall:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = printArgument(a)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"
	case MembershipTest:
		items := make([]string, len(v.Items))
		for i, it := range v.Items {
			items[i] = printArgument(it)
		}
		op := "in"
		if v.Negate {
			op = "not in"
		}
		out := v.Var + " " + op + " (" + strings.Join(items, ", ") + ")"
		if v.HasUnit {
			out += "[" + v.Unit + "]"
		}
		return out
	case BitMaskTest:
		op := "&"
		if !v.Any {
			op = "!&"
		}
		return v.Var + " " + op + " " + formatNumber(v.Mask)
	case Comparison:
		return v.Var + " " + printOp(v.Op) + " " + printArgument(v.Operand)
	}
	return ""
}

func printOp(op CompareOp) string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return "?"
}

func printArgument(a Argument) string {
	switch v := a.(type) {
	case StringLit:
		return `"` + escapeString(v.Value) + `"`
	case Quantity:
		out := formatNumber(v.Value)
		if v.HasUnit {
			out += "[" + v.Unit + "]"
		}
		return out
	case QualifiedName:
		out := v.Name
		if v.HasDims {
			out += "{" + strings.Join(v.Dims, ", ") + "}"
		}
		if v.HasUnit {
			out += "[" + v.Unit + "]"
		}
		return out
	}
	return ""
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

var reverseEscape = map[byte]string{
	'\a': `\a`, '\b': `\b`, 0x1b: `\e`, '\f': `\f`, '\n': `\n`, '\r': `\r`,
	'\t': `\t`, '\v': `\v`, '\\': `\\`, '"': `\"`,
}

func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if esc, ok := reverseEscape[s[i]]; ok {
			b.WriteString(esc)
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
