package action

import (
	"strconv"

	"github.com/stcorp/harp-go/harperr"
)

// Parser is a recursive-descent parser over a pre-lexed token stream.
// It never looks beyond the next two tokens.
type Parser struct {
	toks []Token
	pos  int
}

// NewParser lexes src and returns a Parser ready to parse it.
func NewParser(src string) (*Parser, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

func (p *Parser) peek(n int) Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1] // TokEnd
	}
	return p.toks[i]
}

func (p *Parser) cur() Token { return p.peek(0) }

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k TokenKind) (Token, error) {
	t := p.cur()
	if t.Kind != k {
		return Token{}, harperr.Syntax(t.Offset, "expected %s, found %s", k, t)
	}
	return p.advance(), nil
}

// Parse parses the whole action_list production.
func (p *Parser) Parse() (*ActionList, error) {
	al := &ActionList{}
	if p.cur().Kind == TokEnd {
		return al, nil
	}
	for {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		al.Statements = append(al.Statements, stmt)
		if p.cur().Kind == TokSemicolon {
			p.advance()
			if p.cur().Kind == TokEnd {
				break
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokEnd); err != nil {
		return nil, err
	}
	return al, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	t := p.cur()
	if t.Kind != TokName {
		return nil, harperr.Syntax(t.Offset, "expected a statement, found %s", t)
	}
	// 2-token lookahead decides which production this is.
	next := p.peek(1)
	switch next.Kind {
	case TokLParen:
		return p.parseFunctionCall()
	case TokIn, TokNot:
		return p.parseMembershipTest()
	case TokBitMaskAny, TokBitMaskNone:
		return p.parseBitMaskTest()
	case TokEq, TokNe, TokLt, TokLe, TokGt, TokGe:
		return p.parseComparison()
	default:
		return nil, harperr.Syntax(next.Offset, "unexpected %s after identifier %q", next, t.Text)
	}
}

func (p *Parser) parseFunctionCall() (Statement, error) {
	nameTok := p.advance() // Name
	fc := FunctionCall{Name: nameTok.Text, Pos: nameTok.Offset}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	if p.cur().Kind != TokRParen {
		for {
			arg, err := p.parseArgument()
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, arg)
			if p.cur().Kind == TokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return fc, nil
}

func (p *Parser) parseArgument() (Argument, error) {
	t := p.cur()
	switch t.Kind {
	case TokString:
		p.advance()
		return StringLit{Value: t.Text, Pos: t.Offset}, nil
	case TokNumber:
		return p.parseQuantity()
	case TokName:
		return p.parseQualifiedName()
	default:
		return nil, harperr.Syntax(t.Offset, "expected a string, name, or number, found %s", t)
	}
}

func (p *Parser) parseQuantity() (Argument, error) {
	t := p.advance()
	v, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		return nil, harperr.Syntax(t.Offset, "malformed number %q", t.Text)
	}
	q := Quantity{Value: v, Pos: t.Offset}
	if p.cur().Kind == TokUnit {
		u := p.advance()
		q.Unit = u.Text
		q.HasUnit = true
	}
	return q, nil
}

func (p *Parser) parseQualifiedName() (Argument, error) {
	t := p.advance()
	qn := QualifiedName{Name: t.Text, Pos: t.Offset}
	if p.cur().Kind == TokLBrace {
		p.advance()
		dims, err := p.parseDimList()
		if err != nil {
			return nil, err
		}
		qn.Dims = dims
		qn.HasDims = true
		if _, err := p.expect(TokRBrace); err != nil {
			return nil, err
		}
	}
	if p.cur().Kind == TokUnit {
		u := p.advance()
		qn.Unit = u.Text
		qn.HasUnit = true
	}
	return qn, nil
}

func (p *Parser) parseDimList() ([]string, error) {
	var dims []string
	for {
		t, err := p.expect(TokName)
		if err != nil {
			return nil, err
		}
		dims = append(dims, t.Text)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return dims, nil
}

func (p *Parser) parseLiteral() (Argument, error) {
	t := p.cur()
	switch t.Kind {
	case TokString:
		p.advance()
		return StringLit{Value: t.Text, Pos: t.Offset}, nil
	case TokNumber:
		p.advance()
		v, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, harperr.Syntax(t.Offset, "malformed number %q", t.Text)
		}
		return Quantity{Value: v, Pos: t.Offset}, nil
	default:
		return nil, harperr.Syntax(t.Offset, "expected a number or string literal, found %s", t)
	}
}

func (p *Parser) parseMembershipTest() (Statement, error) {
	nameTok := p.advance() // Name
	mt := MembershipTest{Var: nameTok.Text, Pos: nameTok.Offset}
	if p.cur().Kind == TokNot {
		p.advance()
		mt.Negate = true
		if _, err := p.expect(TokIn); err != nil {
			return nil, err
		}
	} else {
		if _, err := p.expect(TokIn); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		mt.Items = append(mt.Items, lit)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	if p.cur().Kind == TokUnit {
		u := p.advance()
		mt.Unit = u.Text
		mt.HasUnit = true
	}
	return mt, nil
}

func (p *Parser) parseBitMaskTest() (Statement, error) {
	nameTok := p.advance()
	bt := BitMaskTest{Var: nameTok.Text, Pos: nameTok.Offset}
	op := p.advance()
	bt.Any = op.Kind == TokBitMaskAny
	numTok, err := p.expect(TokNumber)
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseFloat(numTok.Text, 64)
	if err != nil {
		return nil, harperr.Syntax(numTok.Offset, "malformed bit mask %q", numTok.Text)
	}
	bt.Mask = v
	return bt, nil
}

func (p *Parser) parseComparison() (Statement, error) {
	nameTok := p.advance()
	cmp := Comparison{Var: nameTok.Text, Pos: nameTok.Offset}
	opTok := p.advance()
	switch opTok.Kind {
	case TokEq:
		cmp.Op = OpEq
	case TokNe:
		cmp.Op = OpNe
	case TokLt:
		cmp.Op = OpLt
	case TokLe:
		cmp.Op = OpLe
	case TokGt:
		cmp.Op = OpGt
	case TokGe:
		cmp.Op = OpGe
	default:
		return nil, harperr.Syntax(opTok.Offset, "expected a comparison operator, found %s", opTok)
	}
	operand, err := p.parseArgument()
	if err != nil {
		return nil, err
	}
	cmp.Operand = operand
	return cmp, nil
}
