// armccrun is a convenience wrapper around the compiler package: it
// offers "compile" and "run" subcommands instead of armcc's single
// flag-driven invocation.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/dcompiler/armcc/compiler"
)

func readSource(arg string) (name, text string) {
	if data, err := os.ReadFile(arg); err == nil {
		return arg, string(data)
	}
	return "<input>", arg
}

var debug bool

var rootCmd = &cobra.Command{
	Use:   "armccrun",
	Short: "Compile and optionally run programs in the stack-machine language",
}

var compileCmd = &cobra.Command{
	Use:   "compile source-or-path",
	Short: "Emit ARM64 assembly for a source file or literal to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, text := readSource(args[0])
		c := compiler.New(name, text)
		c.SetDebug(debug)
		out, err := c.Compile()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var outputPath string

var runCmd = &cobra.Command{
	Use:   "run source-or-path",
	Short: "Compile, assemble with clang, and execute the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, text := readSource(args[0])
		c := compiler.New(name, text)
		c.SetDebug(debug)
		out, err := c.Compile()
		if err != nil {
			return err
		}

		clang := exec.Command("clang", "-o", outputPath, "-x", "assembler", "-")
		clang.Stdout = os.Stdout
		clang.Stderr = os.Stderr
		var buf bytes.Buffer
		buf.WriteString(out)
		clang.Stdin = &buf
		if err := clang.Run(); err != nil {
			return fmt.Errorf("assembling with clang: %w", err)
		}

		exe := exec.Command("./" + outputPath)
		exe.Stdout = os.Stdout
		exe.Stderr = os.Stderr
		if err := exe.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "insert debugging stuff in the generated output")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "a.out", "path to write the assembled binary to")
	rootCmd.AddCommand(compileCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
