package action

import (
	"strings"

	"github.com/stcorp/harp-go/harperr"
)

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameCont(b byte) bool {
	// Function names in the action vocabulary are hyphenated
	// (longitude-range, area-mask-covers-point, …), so '-' is accepted
	// as a continuation character. It can never start a name
	// (isNameStart excludes it), so a leading '-' is still read as a
	// number's sign.
	return isNameStart(b) || (b >= '0' && b <= '9') || b == '-'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

var escapeMap = map[byte]byte{
	'a': '\a', 'b': '\b', 'e': 0x1b, 'f': '\f', 'n': '\n', 'r': '\r',
	't': '\t', 'v': '\v', '\\': '\\', '"': '"', '\'': '\'',
}

// Lex tokenizes src in a single pass, returning every token including
// a trailing TokEnd. Lexing failure is fatal for the whole parse: the
// first malformed byte aborts with a *harperr.Error of KindSyntax.
func Lex(src string) ([]Token, error) {
	var toks []Token
	i := 0
	n := len(src)
	for i < n {
		b := src[i]
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			i++
		case b == ',':
			toks = append(toks, Token{Kind: TokComma, Offset: i})
			i++
		case b == ';':
			toks = append(toks, Token{Kind: TokSemicolon, Offset: i})
			i++
		case b == '(':
			toks = append(toks, Token{Kind: TokLParen, Offset: i})
			i++
		case b == ')':
			toks = append(toks, Token{Kind: TokRParen, Offset: i})
			i++
		case b == '{':
			toks = append(toks, Token{Kind: TokLBrace, Offset: i})
			i++
		case b == '}':
			toks = append(toks, Token{Kind: TokRBrace, Offset: i})
			i++
		case b == '=':
			toks = append(toks, Token{Kind: TokEq, Offset: i})
			i++
		case b == '!':
			start := i
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, Token{Kind: TokNe, Offset: start})
				i += 2
			} else if i+1 < n && src[i+1] == '&' {
				toks = append(toks, Token{Kind: TokBitMaskNone, Offset: start})
				i += 2
			} else {
				return nil, harperr.Syntax(start, "unexpected character %q", b)
			}
		case b == '&':
			toks = append(toks, Token{Kind: TokBitMaskAny, Offset: i})
			i++
		case b == '<':
			start := i
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, Token{Kind: TokLe, Offset: start})
				i += 2
			} else {
				toks = append(toks, Token{Kind: TokLt, Offset: start})
				i++
			}
		case b == '>':
			start := i
			if i+1 < n && src[i+1] == '=' {
				toks = append(toks, Token{Kind: TokGe, Offset: start})
				i += 2
			} else {
				toks = append(toks, Token{Kind: TokGt, Offset: start})
				i++
			}
		case b == '"':
			tok, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case b == '[':
			tok, next, err := lexUnit(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isDigit(b) || ((b == '+' || b == '-') && i+1 < n && isDigit(src[i+1]) && startsNumber(toks)):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isNameStart(b):
			start := i
			j := i + 1
			for j < n && isNameCont(src[j]) {
				j++
			}
			word := src[start:j]
			switch word {
			case "in":
				toks = append(toks, Token{Kind: TokIn, Offset: start})
			case "not":
				toks = append(toks, Token{Kind: TokNot, Offset: start})
			default:
				toks = append(toks, Token{Kind: TokName, Text: word, Offset: start})
			}
			i = j
		default:
			return nil, harperr.Syntax(i, "unexpected character %q", b)
		}
	}
	toks = append(toks, Token{Kind: TokEnd, Offset: n})
	return toks, nil
}

// startsNumber reports whether a leading +/- at the current position
// should be read as a number's sign rather than as an (unsupported)
// binary operator: true unless the previous token is itself an
// operand (a name, number, string, unit, or closing bracket), in
// which case +/- is not part of this grammar at all.
func startsNumber(toks []Token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].Kind {
	case TokName, TokNumber, TokString, TokUnit, TokRParen, TokRBrace:
		return false
	default:
		return true
	}
}

func lexString(src string, start int) (Token, int, error) {
	i := start + 1
	n := len(src)
	var b strings.Builder
	for i < n {
		c := src[i]
		if c == '"' {
			return Token{Kind: TokString, Text: b.String(), Offset: start}, i + 1, nil
		}
		if c == '\\' {
			if i+1 >= n {
				return Token{}, 0, harperr.Syntax(i, "unterminated escape sequence")
			}
			esc, ok := escapeMap[src[i+1]]
			if !ok {
				return Token{}, 0, harperr.Syntax(i, "unknown escape sequence \\%c", src[i+1])
			}
			b.WriteByte(esc)
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return Token{}, 0, harperr.Syntax(start, "unterminated string literal")
}

func lexUnit(src string, start int) (Token, int, error) {
	i := start + 1
	n := len(src)
	for i < n && src[i] != ']' {
		i++
	}
	if i >= n {
		return Token{}, 0, harperr.Syntax(start, "unterminated unit literal")
	}
	return Token{Kind: TokUnit, Text: src[start+1 : i], Offset: start}, i + 1, nil
}

func lexNumber(src string, start int) (Token, int, error) {
	i := start
	n := len(src)
	if src[i] == '+' || src[i] == '-' {
		i++
	}
	digitsSeen := false
	for i < n && isDigit(src[i]) {
		i++
		digitsSeen = true
	}
	if i < n && src[i] == '.' {
		i++
		for i < n && isDigit(src[i]) {
			i++
			digitsSeen = true
		}
	}
	if !digitsSeen {
		return Token{}, 0, harperr.Syntax(start, "malformed number literal")
	}
	if i < n && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < n && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < n && isDigit(src[j]) {
			for j < n && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	return Token{Kind: TokNumber, Text: src[start:i], Offset: start}, i, nil
}
