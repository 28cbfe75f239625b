// Package parser is a recursive-descent parser over the language's
// grammar. It performs semantic lowering as it goes: identifier
// resolution, local-variable slot assignment,
// l-value checking, and >/>= desugaring into </<=, so the code
// generator never has to repeat any of that work.
package parser

import (
	"fmt"

	"github.com/dcompiler/armcc/ast"
	"github.com/dcompiler/armcc/frame"
	"github.com/dcompiler/armcc/lexer"
	"github.com/dcompiler/armcc/source"
	"github.com/dcompiler/armcc/token"
)

// Parser holds our object-state: the lexer feeding us tokens, the
// current token, and the symbol table for whichever function we're
// inside of right now.
type Parser struct {
	buf *source.Buffer
	lex *lexer.Lexer
	cur token.Token

	// per-function state, reset at the start of each fn_def
	symtab   map[string]int
	nextSlot int
	locals   []ast.Local

	// interned string literals, shared across the whole program
	strPool map[string]int
	strs    []string
}

// New creates a Parser over buf. Call Parse to actually run it.
func New(buf *source.Buffer) *Parser {
	return &Parser{
		buf:     buf,
		lex:     lexer.New(buf),
		strPool: make(map[string]int),
	}
}

// Parse lexes and parses buf's text into a Program.
func Parse(buf *source.Buffer) (*ast.Program, error) {
	p := New(buf)
	if err := p.advance(); err != nil {
		return nil, err
	}

	var functions []*ast.Function
	for p.cur.Kind != token.EOF {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}

	return &ast.Program{Functions: functions, Strings: p.strs}, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.NextToken()
	if err != nil {
		// Give lexer errors the same name:line:col prefix parser
		// errors carry.
		if le, ok := err.(*lexer.Error); ok {
			line, col := p.buf.Position(le.Offset)
			le.Detail = fmt.Sprintf("%s:%d:%d: %s", p.buf.Name, line, col, le.Detail)
		}
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) expect(k token.Kind) error {
	if p.cur.Kind != k {
		return p.unexpected(k.String())
	}
	return p.advance()
}

func (p *Parser) unexpected(expected string) error {
	got := p.cur.Kind.String()
	if p.cur.Kind == token.IDENT || p.cur.Kind == token.NUM {
		got = p.cur.Lexeme
	}
	return p.errorf(UnexpectedToken, p.cur.Offset, "expected %s, found %q", expected, got)
}

// declareLocal returns name's slot, allocating a new one on first use.
// This is the implicit-declaration-on-first-write rule: a plain
// assignment and an explicit `let` both funnel through here, so the
// two are equivalent.
func (p *Parser) declareLocal(name string) int {
	if slot, ok := p.symtab[name]; ok {
		return slot
	}
	p.nextSlot++
	slot := p.nextSlot
	p.symtab[name] = slot
	p.locals = append(p.locals, ast.Local{Name: name, Offset: frame.Offset(slot)})
	return slot
}

func (p *Parser) intern(s string) int {
	if idx, ok := p.strPool[s]; ok {
		return idx
	}
	idx := len(p.strs)
	p.strs = append(p.strs, s)
	p.strPool[s] = idx
	return idx
}

// parseFunction parses "fn name(params) block".
func (p *Parser) parseFunction() (*ast.Function, error) {
	if err := p.expect(token.FN); err != nil {
		return nil, err
	}
	if p.cur.Kind != token.IDENT {
		return nil, p.unexpected("function name")
	}
	name := p.cur.Lexeme
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	p.symtab = make(map[string]int)
	p.nextSlot = 0
	p.locals = nil

	var paramNames []string
	firstParamOffset := p.cur.Offset
	if p.cur.Kind != token.RPAREN {
		for {
			if p.cur.Kind != token.IDENT {
				return nil, p.unexpected("parameter name")
			}
			paramNames = append(paramNames, p.cur.Lexeme)
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.Kind == token.COMMA {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if frame.DuplicateParam(paramNames) {
		return nil, p.errorf(DuplicateParam, firstParamOffset, "function %s declares a parameter more than once", name)
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	var params []int
	for _, pname := range paramNames {
		params = append(params, p.declareLocal(pname))
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.Function{
		Name:      name,
		Params:    params,
		Locals:    p.locals,
		Body:      body,
		FrameSize: frame.Size(p.nextSlot),
	}, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	if err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.cur.Kind != token.RBRACE {
		if p.cur.Kind == token.EOF {
			return nil, p.unexpected("}")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if err := p.advance(); err != nil { // consume '}'
		return nil, err
	}
	return &ast.Block{Stmts: stmts}, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur.Kind {
	case token.RETURN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.Return{X: x}, nil

	case token.IF:
		return p.parseIf()

	case token.WHILE:
		return p.parseWhile()

	case token.FOR:
		return p.parseFor()

	case token.LET:
		return p.parseLet()

	case token.LBRACE:
		return p.parseBlock()

	default:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.ExprStmt{X: x}, nil
	}
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.cur.Kind == token.ELSE {
		if err := p.advance(); err != nil {
			return nil, err
		}
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.If{Cond: cond, Then: then, Else: els}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	if err := p.advance(); err != nil { // consume 'while'
		return nil, err
	}
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	if err := p.advance(); err != nil { // consume 'for'
		return nil, err
	}
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	var init ast.Stmt
	if p.cur.Kind != token.SEMI {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = &ast.ExprStmt{X: x}
	}
	if err := p.expect(token.SEMI); err != nil {
		return nil, err
	}

	var cond ast.Expr
	if p.cur.Kind != token.SEMI {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		cond = x
	}
	if err := p.expect(token.SEMI); err != nil {
		return nil, err
	}

	var step ast.Stmt
	if p.cur.Kind != token.RPAREN {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		step = &ast.ExprStmt{X: x}
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}

	return &ast.For{Init: init, Cond: cond, Step: step, Body: body}, nil
}

func (p *Parser) parseLet() (ast.Stmt, error) {
	if err := p.advance(); err != nil { // consume 'let'
		return nil, err
	}
	if p.cur.Kind != token.IDENT {
		return nil, p.unexpected("identifier")
	}
	name := p.cur.Lexeme
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.cur.Kind == token.COLON {
		if err := p.advance(); err != nil {
			return nil, err
		}
		// Type annotations are accepted and discarded: this compiler
		// doesn't type-check. `&T` and a bare identifier both scan the
		// same way here.
		for p.cur.Kind == token.AMP {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.cur.Kind != token.IDENT {
			return nil, p.unexpected("type name")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	slot := p.declareLocal(name)

	var init ast.Expr
	if p.cur.Kind == token.ASSIGN {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		init = x
	}
	if err := p.expect(token.SEMI); err != nil {
		return nil, err
	}

	return &ast.LetDecl{Slot: slot, Init: init}, nil
}

// parseExpr parses the top of the precedence stack: assignment.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseAssign()
}

// parseAssign implements the one right-associative rule in the
// grammar: it recurses into itself on the right of '=' instead of
// looping, unlike every other precedence level below it.
func (p *Parser) parseAssign() (ast.Expr, error) {
	lhs, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.ASSIGN {
		return p.finalize(lhs)
	}

	eqOffset := p.cur.Offset
	lval, err := p.toLValue(lhs, eqOffset)
	if err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil { // consume '='
		return nil, err
	}
	rhs, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{LHS: lval, RHS: rhs}, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	lhs, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.EQ || p.cur.Kind == token.NE {
		op := ast.CmpEQ
		if p.cur.Kind == token.NE {
			op = ast.CmpNE
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		lhs = &ast.Binary{Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

// parseRelational desugars '>' and '>=' into '<' and '<=' with
// swapped operands, so the generator only ever lowers two comparisons
// instead of four.
func (p *Parser) parseRelational() (ast.Expr, error) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case token.LT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			lhs = &ast.Binary{Op: ast.CmpLT, LHS: lhs, RHS: rhs}
		case token.LE:
			if err := p.advance(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			lhs = &ast.Binary{Op: ast.CmpLE, LHS: lhs, RHS: rhs}
		case token.GT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			lhs = &ast.Binary{Op: ast.CmpLT, LHS: rhs, RHS: lhs}
		case token.GE:
			if err := p.advance(); err != nil {
				return nil, err
			}
			rhs, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			lhs = &ast.Binary{Op: ast.CmpLE, LHS: rhs, RHS: lhs}
		default:
			return lhs, nil
		}
	}
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	lhs, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.PLUS || p.cur.Kind == token.MINUS {
		op := ast.Add
		if p.cur.Kind == token.MINUS {
			op = ast.Sub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		lhs = &ast.Binary{Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.STAR || p.cur.Kind == token.SLASH {
		op := ast.Mul
		if p.cur.Kind == token.SLASH {
			op = ast.Div
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &ast.Binary{Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

// parseUnary absorbs unary '+' as a no-op and rewrites unary '-' into
// "0 - operand", so the generator never has to special-case negation.
func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur.Kind {
	case token.PLUS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseUnary()
	case token.MINUS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: ast.Sub, LHS: &ast.Num{Value: 0}, RHS: operand}, nil
	case token.STAR:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.Deref, Operand: operand}, nil
	case token.AMP:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.Addr, Operand: operand}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.Kind {
	case token.NUM:
		v := p.cur.Num
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Num{Value: v}, nil

	case token.STR:
		id := p.intern(string(p.cur.Str))
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StrLit{ID: id}, nil

	case token.IDENT:
		name := p.cur.Lexeme
		offset := p.cur.Offset
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == token.LPAREN {
			return p.parseCall(name, offset)
		}
		if slot, ok := p.symtab[name]; ok {
			return &ast.LocalVar{Name: name, Slot: slot, Offset: frame.Offset(slot)}, nil
		}
		return ast.NewUnresolved(name, offset), nil

	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return x, nil

	default:
		return nil, p.unexpected("expression")
	}
}

func (p *Parser) parseCall(name string, offset int) (ast.Expr, error) {
	if err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.cur.Kind != token.RPAREN {
		for {
			a, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.cur.Kind == token.COMMA {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if len(args) > 8 {
		return nil, p.errorf(TooManyArgs, offset, "call to %s passes %d arguments, at most 8 are supported", name, len(args))
	}
	return &ast.Call{Name: name, Args: args}, nil
}

// toLValue turns an assignment's freshly parsed left-hand side into an
// addressable form, declaring a new local the first time it's ever
// assigned to. It fails with NotAnLValue for anything else.
func (p *Parser) toLValue(e ast.Expr, offset int) (ast.Expr, error) {
	if name, _, ok := ast.UnresolvedInfo(e); ok {
		slot := p.declareLocal(name)
		return &ast.LocalVar{Name: name, Slot: slot, Offset: frame.Offset(slot)}, nil
	}
	switch n := e.(type) {
	case *ast.LocalVar:
		return n, nil
	case *ast.Unary:
		if n.Op == ast.Deref {
			operand, err := p.finalize(n.Operand)
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: ast.Deref, Operand: operand}, nil
		}
	}
	return nil, p.errorf(NotAnLValue, offset, "left-hand side of assignment is not an l-value")
}

// finalize walks an expression that is NOT going to become an
// assignment target and rejects any identifier still unresolved at
// that point: used as a value, a name must already have been declared.
func (p *Parser) finalize(e ast.Expr) (ast.Expr, error) {
	if name, offset, ok := ast.UnresolvedInfo(e); ok {
		return nil, p.errorf(UndefinedName, offset, "undefined name %q", name)
	}
	switch n := e.(type) {
	case *ast.Binary:
		lhs, err := p.finalize(n.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := p.finalize(n.RHS)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: n.Op, LHS: lhs, RHS: rhs}, nil
	case *ast.Unary:
		operand, err := p.finalize(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: n.Op, Operand: operand}, nil
	default:
		// Num, StrLit, LocalVar, Call and Assign either have no
		// children or were already finalized when they were built
		// (Call's arguments and Assign's RHS both go through
		// parseAssign, which always finalizes or lowers its result).
		return e, nil
	}
}
