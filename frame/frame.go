// Package frame computes per-function stack layout: the offset
// assigned to each local slot, and the total, 16-byte-aligned frame
// size that the code generator's prologue reserves.
package frame

import "github.com/samber/lo"

// SlotSize is the width of one local's stack slot. The generator's
// push/pop discipline moves one value at a time but always in
// SlotSize-sized chunks, so a slot and a pushed value share the same
// size and alignment stays automatic.
const SlotSize = 16

// Offset returns the frame-pointer-relative byte offset for slot,
// where slots are numbered starting at 1.
func Offset(slot int) int {
	return -SlotSize * slot
}

// AlignUp16 rounds n up to the next multiple of 16.
func AlignUp16(n int) int {
	return (n + 15) &^ 15
}

// Size computes the frame size for a function with nLocals local
// slots. 16*n is already 16-byte aligned and, for any n >= 1, at
// least the 16*ceil(n/2) floor the invariant asks for; AlignUp16 is
// applied anyway so the formula stays correct if SlotSize ever
// changes from 16.
func Size(nLocals int) int {
	return AlignUp16(SlotSize * nLocals)
}

// DuplicateParam reports whether names (a function's parameter list,
// in declaration order) contains a repeat.
func DuplicateParam(names []string) bool {
	return len(lo.Uniq(names)) != len(names)
}
