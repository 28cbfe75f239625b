// Package codegen walks a parsed Program and emits ARM64 assembly
// text in the dialect clang's integrated assembler accepts on Darwin:
// underscore-prefixed symbols, .globl, @PAGE/@PAGEOFF string
// addressing, AAPCS64 calling convention.
//
// The model is a stack machine laid directly on top of the real call
// stack: every expression leaves exactly one 64-bit value pushed, and
// every operator pops what it needs and pushes its result. A push is
// always a full 16-byte slot, so the stack stays 16-byte aligned at
// every `bl` without any extra bookkeeping.
package codegen

import (
	"fmt"
	"strings"

	"github.com/dcompiler/armcc/ast"
	"github.com/dcompiler/armcc/frame"
)

// ErrorKind distinguishes the (rare) ways emission can fail.
type ErrorKind int

const (
	// UnsupportedConstruct is raised for an AST shape the backend
	// has no lowering for. For parser-built programs this fires on a
	// definition with more than 8 register-passed parameters, and on
	// '&' applied to something other than a local or a dereference
	// (the parser does not check the operand of '&').
	UnsupportedConstruct ErrorKind = iota
)

// Error is returned by Generate when a construct can't be lowered.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// maxRegisterArgs is how many integer arguments AAPCS64 passes in
// registers; it bounds both call sites and function definitions.
const maxRegisterArgs = 8

// Generator holds the state threaded through one emission pass: the
// output buffer and the label counter, which must stay monotonic
// across the whole program, not just within one function.
type Generator struct {
	prog   *ast.Program
	out    strings.Builder
	labels int
}

// New creates a Generator for prog. Call Generate to run it.
func New(prog *ast.Program) *Generator {
	return &Generator{prog: prog}
}

// Generate lexes nothing and parses nothing; it walks prog and
// returns the assembly text for the whole program.
func Generate(prog *ast.Program) (string, error) {
	return New(prog).Generate()
}

// Generate runs the pass. It is safe to call only once per Generator.
func (g *Generator) Generate() (string, error) {
	g.emitStringPool()

	g.out.WriteString(".section __TEXT,__text,regular,pure_instructions\n")
	for i, fn := range g.prog.Functions {
		if err := g.genFunction(fn, i); err != nil {
			return "", err
		}
	}
	return g.out.String(), nil
}

// emitStringPool writes every interned string literal into a cstring
// section, labelled by its index into Program.Strings so StrLit nodes
// can reference it by Lstr_<i>.
func (g *Generator) emitStringPool() {
	if len(g.prog.Strings) == 0 {
		return
	}
	g.out.WriteString(".section __TEXT,__cstring,cstring_literals\n")
	for i, s := range g.prog.Strings {
		fmt.Fprintf(&g.out, "Lstr_%d:\n\t.asciz %q\n", i, s)
	}
}

// genFunction emits one function's prologue, body, and epilogue. n is
// this function's position in the program, used both for its
// Lreturn_<n> label (every `return` in the body branches there) and
// has no other meaning — it is not the label counter, which is
// per-program, not per-function.
func (g *Generator) genFunction(fn *ast.Function, n int) error {
	if len(fn.Params) > maxRegisterArgs {
		return g.unsupported(fmt.Sprintf("function %s declares more than %d parameters", fn.Name, maxRegisterArgs))
	}

	fmt.Fprintf(&g.out, "\n.globl _%s\n.p2align 2\n_%s:\n", fn.Name, fn.Name)
	g.out.WriteString("\tstp fp, lr, [sp, #-16]!\n")
	g.out.WriteString("\tmov fp, sp\n")
	fmt.Fprintf(&g.out, "\tsub sp, sp, #%d\n", fn.FrameSize)

	for i, slot := range fn.Params {
		g.storeAt(fmt.Sprintf("x%d", i), frame.Offset(slot))
	}

	if err := g.genStmt(fn.Body, n); err != nil {
		return err
	}

	fmt.Fprintf(&g.out, "Lreturn_%d:\n", n)
	g.out.WriteString("\tmov sp, fp\n")
	g.out.WriteString("\tldp fp, lr, [sp], #16\n")
	g.out.WriteString("\tret\n")
	return nil
}

// genStmt emits one statement. fnID identifies the enclosing
// function, so a nested Return knows which Lreturn_<n> to branch to.
func (g *Generator) genStmt(s ast.Stmt, fnID int) error {
	switch n := s.(type) {
	case *ast.Block:
		for _, stmt := range n.Stmts {
			if err := g.genStmt(stmt, fnID); err != nil {
				return err
			}
		}

	case *ast.ExprStmt:
		if err := g.genExpr(n.X); err != nil {
			return err
		}
		g.discard()

	case *ast.Return:
		if err := g.genExpr(n.X); err != nil {
			return err
		}
		g.pop("x0")
		fmt.Fprintf(&g.out, "\tb Lreturn_%d\n", fnID)

	case *ast.LetDecl:
		if n.Init == nil {
			return nil
		}
		assign := &ast.Assign{LHS: &ast.LocalVar{Slot: n.Slot, Offset: frame.Offset(n.Slot)}, RHS: n.Init}
		if err := g.genExpr(assign); err != nil {
			return err
		}
		g.discard()

	case *ast.If:
		k := g.nextLabel()
		if err := g.genExpr(n.Cond); err != nil {
			return err
		}
		g.pop("x0")
		g.out.WriteString("\tcmp x0, #0\n")
		fmt.Fprintf(&g.out, "\tbeq Lelse_%d\n", k)
		if err := g.genStmt(n.Then, fnID); err != nil {
			return err
		}
		fmt.Fprintf(&g.out, "\tb Lend_%d\n", k)
		fmt.Fprintf(&g.out, "Lelse_%d:\n", k)
		if n.Else != nil {
			if err := g.genStmt(n.Else, fnID); err != nil {
				return err
			}
		}
		fmt.Fprintf(&g.out, "Lend_%d:\n", k)

	case *ast.While:
		k := g.nextLabel()
		fmt.Fprintf(&g.out, "Lbegin_%d:\n", k)
		if err := g.genExpr(n.Cond); err != nil {
			return err
		}
		g.pop("x0")
		g.out.WriteString("\tcmp x0, #0\n")
		fmt.Fprintf(&g.out, "\tbeq Lend_%d\n", k)
		if err := g.genStmt(n.Body, fnID); err != nil {
			return err
		}
		fmt.Fprintf(&g.out, "\tb Lbegin_%d\n", k)
		fmt.Fprintf(&g.out, "Lend_%d:\n", k)

	case *ast.For:
		k := g.nextLabel()
		if n.Init != nil {
			if err := g.genStmt(n.Init, fnID); err != nil {
				return err
			}
		}
		fmt.Fprintf(&g.out, "Lbegin_%d:\n", k)
		if n.Cond != nil {
			if err := g.genExpr(n.Cond); err != nil {
				return err
			}
			g.pop("x0")
		} else {
			// An absent condition means "loop forever": treat it as
			// the literal 1.
			g.loadImmediate("x0", 1)
		}
		g.out.WriteString("\tcmp x0, #0\n")
		fmt.Fprintf(&g.out, "\tbeq Lend_%d\n", k)
		if err := g.genStmt(n.Body, fnID); err != nil {
			return err
		}
		if n.Step != nil {
			if err := g.genStmt(n.Step, fnID); err != nil {
				return err
			}
		}
		fmt.Fprintf(&g.out, "\tb Lbegin_%d\n", k)
		fmt.Fprintf(&g.out, "Lend_%d:\n", k)

	default:
		return g.unsupported(fmt.Sprintf("statement of type %T", s))
	}
	return nil
}

// genExpr emits e's evaluation, leaving its one result value pushed.
func (g *Generator) genExpr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.Num:
		g.loadImmediate("x0", n.Value)
		g.push("x0")

	case *ast.StrLit:
		fmt.Fprintf(&g.out, "\tadrp x0, Lstr_%d@PAGE\n", n.ID)
		fmt.Fprintf(&g.out, "\tadd x0, x0, Lstr_%d@PAGEOFF\n", n.ID)
		g.push("x0")

	case *ast.LocalVar:
		g.loadAddr("x0", n.Offset)
		g.out.WriteString("\tldr x0, [x0]\n")
		g.push("x0")

	case *ast.Unary:
		switch n.Op {
		case ast.Addr:
			if err := g.genAddr(n.Operand); err != nil {
				return err
			}
		case ast.Deref:
			if err := g.genExpr(n.Operand); err != nil {
				return err
			}
			g.pop("x0")
			g.out.WriteString("\tldr x0, [x0]\n")
			g.push("x0")
		}

	case *ast.Assign:
		if err := g.genAddr(n.LHS); err != nil {
			return err
		}
		if err := g.genExpr(n.RHS); err != nil {
			return err
		}
		g.pop("x1") // rhs
		g.pop("x0") // address
		g.out.WriteString("\tstr x1, [x0]\n")
		g.push("x1")

	case *ast.Binary:
		if err := g.genExpr(n.LHS); err != nil {
			return err
		}
		if err := g.genExpr(n.RHS); err != nil {
			return err
		}
		g.pop("x1")
		g.pop("x0")
		switch n.Op {
		case ast.Add:
			g.out.WriteString("\tadd x0, x0, x1\n")
		case ast.Sub:
			g.out.WriteString("\tsub x0, x0, x1\n")
		case ast.Mul:
			g.out.WriteString("\tmul x0, x0, x1\n")
		case ast.Div:
			g.out.WriteString("\tsdiv x0, x0, x1\n")
		case ast.CmpEQ, ast.CmpNE, ast.CmpLT, ast.CmpLE:
			g.out.WriteString("\tcmp x0, x1\n")
			fmt.Fprintf(&g.out, "\tcset x0, %s\n", conditionCode(n.Op))
		default:
			return g.unsupported("binary operator")
		}
		g.push("x0")

	case *ast.Call:
		if len(n.Args) > maxRegisterArgs {
			return g.unsupported(fmt.Sprintf("call to %s passes more than %d arguments", n.Name, maxRegisterArgs))
		}
		for _, a := range n.Args {
			if err := g.genExpr(a); err != nil {
				return err
			}
		}
		for i := len(n.Args) - 1; i >= 0; i-- {
			g.pop(fmt.Sprintf("x%d", i))
		}
		fmt.Fprintf(&g.out, "\tbl _%s\n", n.Name)
		g.push("x0")

	default:
		return g.unsupported(fmt.Sprintf("expression of type %T", e))
	}
	return nil
}

// genAddr emits the address of an l-value and pushes it. Assignment
// targets arrive already checked by the parser's l-value rule; the
// operand of '&' is not checked there, so anything other than LocalVar
// or Unary{Deref} is reported here as UnsupportedConstruct.
func (g *Generator) genAddr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.LocalVar:
		g.loadAddr("x0", n.Offset)
		g.push("x0")
		return nil
	case *ast.Unary:
		if n.Op == ast.Deref {
			if err := g.genExpr(n.Operand); err != nil {
				return err
			}
			return nil // genExpr already left the address pushed
		}
	}
	return g.unsupported("address of a non-l-value")
}

// push stores reg into a freshly reserved 16-byte slot.
func (g *Generator) push(reg string) {
	fmt.Fprintf(&g.out, "\tstr %s, [sp, #-16]!\n", reg)
}

// pop loads the top slot into reg and releases it.
func (g *Generator) pop(reg string) {
	fmt.Fprintf(&g.out, "\tldr %s, [sp], #16\n", reg)
}

// discard drops the top of the value stack without reading it: an
// expression-statement's result is simply never looked at again, and
// x0 is left as it was. A trailing expression (with no explicit
// return) whose result is computed in x0 therefore leaves that value
// there for main's exit status; an assignment is the exception, since
// it pushes its value from x1 and leaves the target address in x0.
func (g *Generator) discard() {
	g.out.WriteString("\tadd sp, sp, #16\n")
}

// storeAt writes reg to [fp + offset], used once per parameter in a
// function's prologue.
func (g *Generator) storeAt(reg string, offset int) {
	g.loadAddr("x9", offset)
	fmt.Fprintf(&g.out, "\tstr %s, [x9]\n", reg)
}

// loadAddr materializes fp+offset into reg. Most frames fit the
// 12-bit immediate `add`/`sub` encodes directly; a frame large enough
// not to needs the value built in the x9 scratch register first.
func (g *Generator) loadAddr(reg string, offset int) {
	const immediateLimit = 4095
	if offset >= -immediateLimit && offset <= immediateLimit {
		if offset >= 0 {
			fmt.Fprintf(&g.out, "\tadd %s, fp, #%d\n", reg, offset)
		} else {
			fmt.Fprintf(&g.out, "\tsub %s, fp, #%d\n", reg, -offset)
		}
		return
	}
	g.loadImmediate("x9", int64(offset))
	fmt.Fprintf(&g.out, "\tadd %s, fp, x9\n", reg)
}

// loadImmediate materializes any signed 64-bit value into reg via
// movz/movk, so literals and offsets outside the 16-bit-per-chunk
// immediate encoding still assemble correctly.
func (g *Generator) loadImmediate(reg string, v int64) {
	u := uint64(v)
	fmt.Fprintf(&g.out, "\tmovz %s, #%d\n", reg, u&0xffff)
	for shift := 16; shift < 64; shift += 16 {
		part := (u >> shift) & 0xffff
		if part != 0 {
			fmt.Fprintf(&g.out, "\tmovk %s, #%d, lsl #%d\n", reg, part, shift)
		}
	}
}

func (g *Generator) nextLabel() int {
	k := g.labels
	g.labels++
	return k
}

func (g *Generator) unsupported(what string) error {
	return &Error{Kind: UnsupportedConstruct, Detail: fmt.Sprintf("code generator cannot emit %s", what)}
}

// conditionCode maps a comparison BinOp to the ARM64 condition `cset`
// expects. Only the four kinds that survive parse-time desugaring
// (CmpEQ, CmpNE, CmpLT, CmpLE) ever reach here.
func conditionCode(op ast.BinOp) string {
	switch op {
	case ast.CmpEQ:
		return "eq"
	case ast.CmpNE:
		return "ne"
	case ast.CmpLT:
		return "lt"
	case ast.CmpLE:
		return "le"
	default:
		return "eq"
	}
}
