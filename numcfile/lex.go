package numcfile

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	Illegal TokenType = iota
	EOF

	Symbol // add
	Number // -1.5e3

	LParen // (
	RParen // )
	Comma  // ,
)

type Token struct {
	ty   TokenType
	text string
	// offset is the byte offset of the token in the input
	offset int
}

func (tok Token) Type() TokenType { return tok.ty }

func (tok Token) Text() string { return tok.text }

func (tok Token) Offset() int { return tok.offset }

func (tok Token) String() string {
	if tok.ty == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%q", tok.text)
}

type stateFunc func() stateFunc

// Lexer splits an expression into Tokens.
type Lexer struct {
	r io.RuneReader

	peeking   []rune
	err       error
	state     stateFunc
	bufOffset int
	buf       []rune
	output    []Token
}

func NewLexer(r io.RuneReader) *Lexer {
	l := &Lexer{r: r}
	l.state = l.lexInit
	return l
}

// Next returns the next token.
// After the input is exhausted, Next returns EOF tokens forever.
func (l *Lexer) Next() (Token, error) {
	for len(l.output) == 0 && l.err == nil {
		l.state = l.state()
	}
	if l.err != nil {
		return Token{}, l.err
	}
	tok := l.output[0]
	l.output = l.output[1:]
	return tok, nil
}

// emit creates a token from the buffer and clears the buffer
func (l *Lexer) emit(ty TokenType) {
	text := string(l.buf)
	if ty == EOF {
		text = ""
	}
	l.output = append(l.output, Token{ty: ty, text: text, offset: l.bufOffset})
	l.bufOffset += len(text)
	l.buf = l.buf[:0]
}

// read consumes input
// if an error is encountered it sets l.err and returns eofRune
func (l *Lexer) read() rune {
	if len(l.peeking) > 0 {
		r := l.peeking[len(l.peeking)-1]
		l.peeking = l.peeking[:len(l.peeking)-1]
		l.buf = append(l.buf, r)
		return r
	}
	r, _, err := l.r.ReadRune()
	if err != nil {
		if err != io.EOF {
			l.err = err
		}
		r = eofRune
	}
	l.buf = append(l.buf, r)
	return r
}

// back puts the last rune read back into the input.
func (l *Lexer) back() {
	r := l.buf[len(l.buf)-1]
	l.buf = l.buf[:len(l.buf)-1]
	l.peeking = append(l.peeking, r)
}

func (l *Lexer) peek() rune {
	r := l.read()
	l.back()
	return r
}

func (l *Lexer) lexInit() stateFunc {
	r := l.read()
	switch {
	case r == eofRune:
		return l.lexEnd
	case unicode.IsSpace(r):
		l.skip(r)
	case r == '(':
		l.emit(LParen)
	case r == ')':
		l.emit(RParen)
	case r == ',':
		l.emit(Comma)
	case r == '-' || r == '+' || r == '.' || isDigit(r):
		l.back()
		return l.lexNumber
	case isLetter(r):
		l.back()
		return l.lexSymbol
	default:
		return l.errorf("illegal character %q", r)
	}
	return l.lexInit
}

func (l *Lexer) lexSymbol() stateFunc {
	l.accum(func(r rune) bool { return isLetter(r) || isDigit(r) })
	if r := l.peek(); !isTerminator(r) {
		return l.errorf("improperly terminated symbol %q", r)
	}
	l.emit(Symbol)
	return l.lexInit
}

func (l *Lexer) lexNumber() stateFunc {
	l.accept("+-")
	digits := l.acceptRun("0123456789")
	if l.accept(".") {
		digits += l.acceptRun("0123456789")
	}
	if digits == 0 {
		return l.errorf("number has no digits")
	}
	if l.accept("eE") {
		l.accept("+-")
		if l.acceptRun("0123456789") == 0 {
			return l.errorf("exponent has no digits")
		}
	}
	if r := l.peek(); !isTerminator(r) {
		return l.errorf("improperly terminated number %q", r)
	}
	l.emit(Number)
	return l.lexInit
}

// lexEnd is the terminal state of the lexer, it only emits EOF tokens.
func (l *Lexer) lexEnd() stateFunc {
	l.buf = l.buf[:0]
	l.emit(EOF)
	return l.lexEnd
}

func (l *Lexer) accept(valid string) bool {
	if r := l.read(); r != eofRune && strings.ContainsRune(valid, r) {
		return true
	}
	l.back()
	return false
}

func (l *Lexer) acceptRun(valid string) (n int) {
	for l.accept(valid) {
		n++
	}
	return n
}

func (l *Lexer) accum(fn func(rune) bool) {
	for {
		if r := l.read(); !fn(r) {
			l.back()
			return
		}
	}
}

// skip drops r from the buffer without emitting a token.
func (l *Lexer) skip(r rune) {
	l.buf = l.buf[:len(l.buf)-1]
	l.bufOffset += utf8.RuneLen(r)
}

func (l *Lexer) errorf(format string, args ...any) stateFunc {
	l.err = &SyntaxError{Offset: l.bufOffset, Msg: fmt.Sprintf(format, args...)}
	return l.lexEnd
}

func isTerminator(r rune) bool {
	return r == eofRune || unicode.IsSpace(r) || r == '(' || r == ')' || r == ','
}

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_' || r >= utf8.RuneSelf && unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

const eofRune = -1
