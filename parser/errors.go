package parser

import "fmt"

// ErrorKind distinguishes the ways parsing (including the semantic
// lowering done alongside it) can fail.
type ErrorKind int

const (
	UnexpectedToken ErrorKind = iota
	UndefinedName
	NotAnLValue
	TooManyArgs
	DuplicateParam
)

// Error is returned by Parse when the token stream doesn't match the
// grammar, or a lowering rule is violated. It always carries the byte
// offset of the offending token.
type Error struct {
	Kind   ErrorKind
	Offset int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func (p *Parser) errorf(kind ErrorKind, offset int, format string, args ...interface{}) error {
	line, col := p.buf.Position(offset)
	return &Error{
		Kind:   kind,
		Offset: offset,
		Detail: fmt.Sprintf("%s:%d:%d: %s", p.buf.Name, line, col, fmt.Sprintf(format, args...)),
	}
}
