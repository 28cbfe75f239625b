package parser

import (
	"testing"

	"github.com/dcompiler/armcc/ast"
	"github.com/dcompiler/armcc/source"
)

func parse(t *testing.T, text string) *ast.Program {
	t.Helper()
	prog, err := Parse(source.New("<test>", text))
	if err != nil {
		t.Fatalf("unexpected error parsing %q: %v", text, err)
	}
	return prog
}

func parseErr(t *testing.T, text string) error {
	t.Helper()
	_, err := Parse(source.New("<test>", text))
	if err == nil {
		t.Fatalf("expected an error parsing %q, got none", text)
	}
	return err
}

func TestEmptyProgramParses(t *testing.T) {
	prog := parse(t, "")
	if len(prog.Functions) != 0 {
		t.Errorf("expected no functions, got %d", len(prog.Functions))
	}
}

func TestImplicitDeclarationOnAssignment(t *testing.T) {
	prog := parse(t, "fn main() { a = 1; return a; }")
	fn := prog.Functions[0]
	if len(fn.Locals) != 1 || fn.Locals[0].Name != "a" {
		t.Fatalf("expected one local named 'a', got %+v", fn.Locals)
	}
	if fn.FrameSize != 16 {
		t.Errorf("expected frame size 16, got %d", fn.FrameSize)
	}
}

func TestUndefinedNameFails(t *testing.T) {
	err := parseErr(t, "fn main() { return a; }")
	pe, ok := err.(*Error)
	if !ok || pe.Kind != UndefinedName {
		t.Errorf("expected UndefinedName, got %v", err)
	}
}

func TestNotAnLValue(t *testing.T) {
	err := parseErr(t, "fn main() { 1 = 2; }")
	pe, ok := err.(*Error)
	if !ok || pe.Kind != NotAnLValue {
		t.Errorf("expected NotAnLValue, got %v", err)
	}
}

func TestDerefIsAnLValue(t *testing.T) {
	prog := parse(t, "fn main() { a = 3; b = &a; *b = 4; return a; }")
	fn := prog.Functions[0]
	if len(fn.Body.Stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(fn.Body.Stmts))
	}
	assign, ok := fn.Body.Stmts[2].(*ast.ExprStmt).X.(*ast.Assign)
	if !ok {
		t.Fatalf("expected an Assign statement, got %T", fn.Body.Stmts[2])
	}
	if _, ok := assign.LHS.(*ast.Unary); !ok {
		t.Errorf("expected lhs to be a Unary deref, got %T", assign.LHS)
	}
}

func TestChainedAssignmentIsRightAssociative(t *testing.T) {
	prog := parse(t, "fn main() { a = b = c = 1; return a; }")
	fn := prog.Functions[0]
	if len(fn.Locals) != 3 {
		t.Fatalf("expected 3 locals, got %d", len(fn.Locals))
	}
	outer, ok := fn.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.Assign)
	if !ok {
		t.Fatalf("expected top-level Assign, got %T", fn.Body.Stmts[0])
	}
	middle, ok := outer.RHS.(*ast.Assign)
	if !ok {
		t.Fatalf("expected nested Assign on rhs, got %T", outer.RHS)
	}
	if _, ok := middle.RHS.(*ast.Assign); !ok {
		t.Fatalf("expected doubly nested Assign, got %T", middle.RHS)
	}
}

func TestGreaterThanDesugarsWithSwappedOperands(t *testing.T) {
	prog := parse(t, "fn main() { a = 1; if (a > 2) { return 1; } return 0; }")
	fn := prog.Functions[0]
	ifStmt := fn.Body.Stmts[1].(*ast.If)
	bin, ok := ifStmt.Cond.(*ast.Binary)
	if !ok {
		t.Fatalf("expected Binary condition, got %T", ifStmt.Cond)
	}
	if bin.Op != ast.CmpLT {
		t.Errorf("expected a > b to desugar to CmpLT, got %v", bin.Op)
	}
	// a > 2 becomes 2 < a: lhs is the literal, rhs is the variable.
	if _, ok := bin.LHS.(*ast.Num); !ok {
		t.Errorf("expected desugared lhs to be the literal, got %T", bin.LHS)
	}
}

func TestPrecedence(t *testing.T) {
	// 1 + 2 * 3 must group as 1 + (2 * 3)
	prog := parse(t, "fn main() { return 1 + 2 * 3; }")
	ret := prog.Functions[0].Body.Stmts[0].(*ast.Return)
	add, ok := ret.X.(*ast.Binary)
	if !ok || add.Op != ast.Add {
		t.Fatalf("expected top-level Add, got %+v", ret.X)
	}
	if _, ok := add.LHS.(*ast.Num); !ok {
		t.Errorf("expected lhs to be the literal 1, got %T", add.LHS)
	}
	mul, ok := add.RHS.(*ast.Binary)
	if !ok || mul.Op != ast.Mul {
		t.Fatalf("expected rhs to be Mul, got %+v", add.RHS)
	}
}

func TestUnaryMinusDesugarsToSubtractionFromZero(t *testing.T) {
	prog := parse(t, "fn main() { return -9223372036854775807; }")
	ret := prog.Functions[0].Body.Stmts[0].(*ast.Return)
	bin, ok := ret.X.(*ast.Binary)
	if !ok || bin.Op != ast.Sub {
		t.Fatalf("expected Sub, got %+v", ret.X)
	}
	if n, ok := bin.LHS.(*ast.Num); !ok || n.Value != 0 {
		t.Errorf("expected lhs to be the literal 0, got %+v", bin.LHS)
	}
}

func TestTooManyArgs(t *testing.T) {
	err := parseErr(t, "fn main() { return f(1,2,3,4,5,6,7,8,9); }")
	pe, ok := err.(*Error)
	if !ok || pe.Kind != TooManyArgs {
		t.Errorf("expected TooManyArgs, got %v", err)
	}
}

func TestDuplicateParam(t *testing.T) {
	err := parseErr(t, "fn f(a, a) { return a; }")
	pe, ok := err.(*Error)
	if !ok || pe.Kind != DuplicateParam {
		t.Errorf("expected DuplicateParam, got %v", err)
	}
}

func TestFunctionScopedNotBlockScoped(t *testing.T) {
	prog := parse(t, "fn main() { a = 1; { a = 2; } return a; }")
	fn := prog.Functions[0]
	if len(fn.Locals) != 1 {
		t.Errorf("expected 'a' to reuse a single function-scoped slot, got %d locals", len(fn.Locals))
	}
}

func TestEmptyForComponents(t *testing.T) {
	prog := parse(t, "fn main() { a = 0; for (;;) { a = a + 1; if (a > 2) { return a; } } }")
	forStmt := prog.Functions[0].Body.Stmts[1].(*ast.For)
	if forStmt.Init != nil || forStmt.Cond != nil || forStmt.Step != nil {
		t.Errorf("expected all for-components to be nil, got %+v", forStmt)
	}
}

func TestLetWithTypeAnnotationIsDiscarded(t *testing.T) {
	prog := parse(t, "fn main() { let x: i32 = 5; return x; }")
	let := prog.Functions[0].Body.Stmts[0].(*ast.LetDecl)
	if let.Init == nil {
		t.Fatalf("expected an initializer")
	}
}

func TestStringLiteralsAreInterned(t *testing.T) {
	prog := parse(t, `fn main() { write(1, "hi", 2); write(1, "hi", 2); }`)
	if len(prog.Strings) != 1 {
		t.Errorf("expected a single interned string, got %d: %v", len(prog.Strings), prog.Strings)
	}
}
