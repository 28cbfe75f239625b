// Package compiler wires the lexer, parser and code generator
// together into the two-step pipeline the driver calls:
//
//  1. Parse the input into a Program (this also runs the lexer,
//     since the parser pulls tokens from it on demand).
//
//  2. Walk the Program, generating ARM64 assembly text.
//
// There is no separate tokenize step kept around afterwards: unlike
// an RPN-style front end, the parser here builds a proper AST, and
// tokens don't outlive the call that produced them.
package compiler

import (
	"github.com/dcompiler/armcc/ast"
	"github.com/dcompiler/armcc/codegen"
	"github.com/dcompiler/armcc/parser"
	"github.com/dcompiler/armcc/source"
)

// Compiler holds our object-state.
type Compiler struct {

	// debug holds a flag to decide if debugging "stuff" is generated
	// in the output assembly.
	debug bool

	// buf is the source text we're compiling, with its name (for
	// diagnostics) attached.
	buf *source.Buffer

	// program is the parsed form, populated by Compile. Kept around
	// so a caller that wants the AST itself (tests, tooling) doesn't
	// have to re-parse.
	program *ast.Program
}

// New creates a new compiler for the named source.
func New(name, input string) *Compiler {
	return &Compiler{buf: source.New(name, input)}
}

// SetDebug changes the debug-flag for our output. Currently this adds
// a comment banner to the top of the emitted assembly; it does not
// change the generated instructions.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
}

// Program returns the parsed AST, or nil if Compile hasn't run yet
// (or failed before producing one).
func (c *Compiler) Program() *ast.Program {
	return c.program
}

// Compile runs the full pipeline and returns the ARM64 assembly text
// for the input, or the first error encountered.
func (c *Compiler) Compile() (string, error) {
	prog, err := parser.Parse(c.buf)
	if err != nil {
		return "", err
	}
	c.program = prog

	out, err := codegen.Generate(prog)
	if err != nil {
		return "", err
	}

	if c.debug {
		out = debugBanner(c.buf.Name) + out
	}
	return out, nil
}

func debugBanner(name string) string {
	return "# compiled from " + name + " with debugging enabled\n"
}
