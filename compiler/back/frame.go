package back

import (
	"github.com/slowlang/lowc/compiler/asm"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/tp"
)

type (
	// Frame maps locals and temps to rbp relative slots.
	// Slots are laid out below the saved registers.
	Frame struct {
		locals map[*ir.Local]int
		temps  []int

		// Size is the sum of slot sizes.
		Size int

		Align int
		Saved []*asm.Reg
	}
)

// NewFrame assigns slots to every local then every temp in declaration order.
func NewFrame(f *ir.Func, align int) *Frame {
	fr := &Frame{
		locals: make(map[*ir.Local]int, len(f.Locals)),
		temps:  make([]int, len(f.Temps)),
		Align:  align,
	}

	for _, l := range f.Locals {
		fr.Size += SlotSize(l.T)
		fr.locals[l] = -fr.Size
	}

	for _, t := range f.Temps {
		fr.Size += SlotSize(t.T)
		fr.temps[t.ID] = -fr.Size
	}

	return fr
}

// SlotSize is the frame slot size of a value of type t.
func SlotSize(t *tp.Type) int {
	n, _ := tp.AlignUp(max(1, t.Size()), 8)
	return n
}

// Total is the slot area rounded up to the stack alignment.
func (fr *Frame) Total() int {
	n, err := tp.AlignUp(fr.Size, fr.Align)
	if err != nil {
		panic(err)
	}

	return n
}

// Reserve is the stack pointer adjustment after the saved registers are pushed.
// It keeps the stack aligned counting the saved registers.
func (fr *Frame) Reserve() int {
	used := fr.Size + 8*len(fr.Saved)
	pad := (fr.Align - used%fr.Align) % fr.Align

	return fr.Size + pad
}

func (fr *Frame) bias() int { return -8 * len(fr.Saved) }

func (fr *Frame) LocalSlot(l *ir.Local) (int, bool) {
	off, ok := fr.locals[l]
	return off + fr.bias(), ok
}

func (fr *Frame) TempSlot(t *ir.Temp) int {
	return fr.temps[t.ID] + fr.bias()
}
