// This is the main-driver for our compiler.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/dcompiler/armcc/compiler"
)

func main() {

	//
	// Look for flags.
	//
	debug := flag.Bool("debug", false, "Insert debugging \"stuff\" in our generated output.")
	build := flag.Bool("compile", false, "Assemble the program, via invoking clang.")
	program := flag.String("filename", "a.out", "The binary to write to.")
	run := flag.Bool("run", false, "Run the binary, post-assemble.")
	flag.Parse()

	//
	// If we're running we're also assembling.
	//
	if *run {
		*build = true
	}

	//
	// Ensure we have a source-or-path as our single argument.
	//
	if len(flag.Args()) != 1 {
		fmt.Printf("Usage: armcc 'source-or-path'\n")
		os.Exit(1)
	}
	arg := flag.Args()[0]

	//
	// If the argument names an existing file, read it; otherwise
	// treat the argument itself as the source text.
	//
	name := "<input>"
	text := arg
	if data, err := os.ReadFile(arg); err == nil {
		name = arg
		text = string(data)
	}

	//
	// Create a compiler-object, with the program as input.
	//
	comp := compiler.New(name, text)

	//
	// Are we inserting debugging "stuff" ?
	//
	if *debug {
		comp.SetDebug(true)
	}

	//
	// Compile.
	//
	out, err := comp.Compile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}

	//
	// If we're not assembling the output then we just write the
	// generated assembly to STDOUT, and terminate.
	//
	if !*build {
		fmt.Printf("%s", out)
		return
	}

	//
	// OK we're assembling the program, via clang's integrated
	// assembler.
	//
	clang := exec.Command("clang", "-o", *program, "-x", "assembler", "-")
	clang.Stdout = os.Stdout
	clang.Stderr = os.Stderr

	//
	// We'll pipe our generated assembly to STDIN of clang, via a
	// temporary buffer-object.
	//
	var b bytes.Buffer
	b.WriteString(out)
	clang.Stdin = &b

	//
	// Run clang.
	//
	err = clang.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error launching clang: %s\n", err)
		os.Exit(1)
	}

	//
	// Running the binary too?
	//
	if *run {
		exe := exec.Command("./" + *program)
		exe.Stdout = os.Stdout
		exe.Stderr = os.Stderr
		err = exe.Run()
		if err != nil {
			// A non-zero exit from the compiled program isn't our
			// error: propagate its own exit code instead of printing
			// "error" for ordinary test output.
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			fmt.Fprintf(os.Stderr, "Error launching %s: %s\n", *program, err)
			os.Exit(1)
		}
	}
}
