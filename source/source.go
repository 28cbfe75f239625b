// Package source owns the raw input text handed to the compiler and
// turns a byte offset into a 1-based line/column pair for diagnostics.
package source

import "strings"

// Buffer holds the text being compiled along with enough bookkeeping
// to translate a byte offset into a human-readable position.
type Buffer struct {
	// Name is the file path the text was read from, or "<input>" when
	// the driver was given a literal expression on the command line.
	Name string

	// Text is the full source, unmodified.
	Text string

	// lineStarts holds the byte offset of the first character of each
	// line; lineStarts[0] is always 0.
	lineStarts []int
}

// New wraps text (read from name, or typed directly) in a Buffer.
func New(name, text string) *Buffer {
	b := &Buffer{Name: name, Text: text}
	b.lineStarts = append(b.lineStarts, 0)
	for i, ch := range text {
		if ch == '\n' {
			b.lineStarts = append(b.lineStarts, i+1)
		}
	}
	return b
}

// Position converts a byte offset into a 1-based (line, column) pair.
func (b *Buffer) Position(offset int) (line, col int) {
	// Binary search would be nicer, but sources compiled by this tool
	// are tiny and this keeps the logic obvious.
	line = 1
	for i := len(b.lineStarts) - 1; i >= 0; i-- {
		if offset >= b.lineStarts[i] {
			line = i + 1
			col = offset - b.lineStarts[i] + 1
			return line, col
		}
	}
	return 1, offset + 1
}

// Snippet returns the source line containing offset, for error context.
func (b *Buffer) Snippet(offset int) string {
	line, _ := b.Position(offset)
	lines := strings.Split(b.Text, "\n")
	if line-1 < len(lines) {
		return lines[line-1]
	}
	return ""
}
