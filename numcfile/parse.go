package numcfile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"elementlang.org/numc/instr"
	"elementlang.org/numc/internal/ringbuf"
	"elementlang.org/numc/spec"
)

// SyntaxError is an error in an expression.
type SyntaxError struct {
	// Offset is the byte offset in the expression where the error was found.
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Expr is a parsed expression
type Expr interface {
	// Build returns the instruction computed by the expression.
	// args holds the instructions for each input
	Build(args []instr.Node) instr.Node
	String() string
}

// Literal is a numeric constant
type Literal float32

func (x Literal) Build([]instr.Node) instr.Node {
	return instr.Const(float32(x))
}

func (x Literal) String() string {
	return strconv.FormatFloat(float64(x), 'g', -1, 32)
}

// Ref refers to an input by index.
type Ref struct {
	Index int
	Name  string
}

func (x Ref) Build(args []instr.Node) instr.Node {
	return args[x.Index]
}

func (x Ref) String() string {
	return x.Name
}

// Call applies an operation to arguments.
type Call struct {
	Op   string
	Args []Expr

	build func(args []instr.Node) instr.Node
}

func (x *Call) Build(args []instr.Node) instr.Node {
	return x.build(args)
}

func (x *Call) String() string {
	var sb strings.Builder
	sb.WriteString(x.Op)
	sb.WriteString("(")
	for i, arg := range x.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

var keywords = map[string]Literal{
	"true":  Literal(spec.True),
	"false": Literal(spec.False),
	"nan":   Literal(float32(math.NaN())),
	"inf":   Literal(float32(math.Inf(1))),
}

// IsKeyword returns true if x cannot be used as an input name.
func IsKeyword(x string) bool {
	if _, yes := keywords[strings.ToLower(x)]; yes {
		return true
	}
	if x == "select" {
		return true
	}
	_, isBinary := spec.ParseBinaryOp(x)
	_, isUnary := spec.ParseUnaryOp(x)
	return isBinary || isUnary
}

// Parser parses expressions over a fixed list of inputs.
type Parser struct {
	lex    *Lexer
	inputs []string
	inBuf  ringbuf.RingBuf[Token]
}

func NewParser(src string, inputs []string) *Parser {
	return &Parser{
		lex:    NewLexer(strings.NewReader(src)),
		inputs: inputs,
		inBuf:  ringbuf.New[Token](2),
	}
}

// ParseExpr parses src, which may refer to inputs by name.
func ParseExpr(src string, inputs []string) (Expr, error) {
	return NewParser(src, inputs).ParseAll()
}

// ParseAll parses a single expression, which must be followed by the end of the input.
func (p *Parser) ParseAll() (Expr, error) {
	x, err := p.Parse()
	if err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Type() != EOF {
		return nil, p.errorf(tok, "unexpected %v after expression", tok)
	}
	return x, nil
}

// Parse parses the next expression.
func (p *Parser) Parse() (Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type() {
	case Number:
		return p.parseNumber(tok)
	case Symbol:
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Type() == LParen {
			return p.parseCall(tok)
		}
		return p.parseSymbol(tok)
	case EOF:
		return nil, p.errorf(tok, "expected expression, found end of input")
	default:
		return nil, p.errorf(tok, "unexpected %v", tok)
	}
}

func (p *Parser) parseNumber(tok Token) (Expr, error) {
	x, err := strconv.ParseFloat(tok.Text(), 32)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return Literal(float32(x)), nil
		}
		return nil, p.errorf(tok, "invalid number %v", tok)
	}
	return Literal(float32(x)), nil
}

func (p *Parser) parseSymbol(tok Token) (Expr, error) {
	if lit, yes := keywords[strings.ToLower(tok.Text())]; yes {
		return lit, nil
	}
	for i, name := range p.inputs {
		if name == tok.Text() {
			return Ref{Index: i, Name: name}, nil
		}
	}
	return nil, p.errorf(tok, "undefined input %s", tok.Text())
}

func (p *Parser) parseCall(name Token) (Expr, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	call := &Call{Op: name.Text(), Args: args}
	arity := func(n int) error {
		if len(args) != n {
			return p.errorf(name, "%s takes %d arguments, have %d", name.Text(), n, len(args))
		}
		return nil
	}
	if op, ok := spec.ParseBinaryOp(name.Text()); ok {
		if err := arity(2); err != nil {
			return nil, err
		}
		call.Op = op.String()
		call.build = func(xs []instr.Node) instr.Node {
			return instr.NewBinary(op, args[0].Build(xs), args[1].Build(xs))
		}
	} else if op, ok := spec.ParseUnaryOp(name.Text()); ok {
		if err := arity(1); err != nil {
			return nil, err
		}
		call.Op = op.String()
		call.build = func(xs []instr.Node) instr.Node {
			return instr.NewUnary(op, args[0].Build(xs))
		}
	} else if name.Text() == "select" {
		if len(args) < 3 {
			return nil, p.errorf(name, "select takes a selector and at least 2 operands, have %d arguments", len(args))
		}
		call.build = func(xs []instr.Node) instr.Node {
			operands := make([]instr.Node, len(args)-1)
			for i := range operands {
				operands[i] = args[i+1].Build(xs)
			}
			return instr.NewMux(args[0].Build(xs), operands...)
		}
	} else {
		return nil, p.errorf(name, "unknown operation %s", name.Text())
	}
	return call, nil
}

func (p *Parser) parseArgs() ([]Expr, error) {
	if _, err := p.expect(LParen); err != nil {
		return nil, err
	}
	var args []Expr
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type() == RParen && len(args) == 0 {
			p.next()
			return args, nil
		}
		arg, err := p.Parse()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		switch tok.Type() {
		case Comma:
		case RParen:
			return args, nil
		default:
			return nil, p.errorf(tok, "expected , or ) found %v", tok)
		}
	}
}

func (p *Parser) expect(ty TokenType) (Token, error) {
	tok, err := p.next()
	if err != nil {
		return Token{}, err
	}
	if tok.Type() != ty {
		return Token{}, p.errorf(tok, "unexpected %v", tok)
	}
	return tok, nil
}

func (p *Parser) fill(n int) error {
	for p.inBuf.Len() < n {
		tok, err := p.lex.Next()
		if err != nil {
			return err
		}
		p.inBuf.PushBack(tok)
	}
	return nil
}

func (p *Parser) next() (Token, error) {
	if err := p.fill(1); err != nil {
		return Token{}, err
	}
	return p.inBuf.PopFront(), nil
}

func (p *Parser) peek() (Token, error) {
	if err := p.fill(1); err != nil {
		return Token{}, err
	}
	return p.inBuf.At(0), nil
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return &SyntaxError{Offset: tok.Offset(), Msg: fmt.Sprintf(format, args...)}
}
