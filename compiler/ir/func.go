package ir

import (
	"strconv"

	"github.com/slowlang/lowc/compiler/tp"
)

type (
	Block struct {
		Label  Label
		Instrs []*Instr
	}

	Func struct {
		Name   string
		Ret    *tp.Type
		Public bool

		// External functions have no body and are emitted as extern declarations.
		External bool

		Params []*Local
		Locals []*Local
		Temps  []*Temp
		Blocks []*Block
	}
)

func (f *Func) NewTemp(t *tp.Type) *Temp {
	x := &Temp{ID: len(f.Temps), T: t}
	f.Temps = append(f.Temps, x)

	return x
}

func (f *Func) NewLocal(name string, t *tp.Type) *Local {
	x := &Local{Name: name, T: t, Index: len(f.Locals)}
	f.Locals = append(f.Locals, x)

	return x
}

// NewParam creates a parameter local. Params are also locals.
func (f *Func) NewParam(name string, t *tp.Type) *Local {
	x := f.NewLocal(name, t)
	x.Param = true

	f.Params = append(f.Params, x)

	return x
}

func (f *Func) NewBlock(l Label) *Block {
	b := &Block{Label: l}
	f.Blocks = append(f.Blocks, b)

	return b
}

// BlockIndex returns the index of the block labeled l or -1.
func (f *Func) BlockIndex(l Label) int {
	for i, b := range f.Blocks {
		if b.Label == l {
			return i
		}
	}

	return -1
}

func (f *Func) Last() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}

	return f.Blocks[len(f.Blocks)-1]
}

func (b *Block) Append(op Op, res *Temp, args ...Operand) *Instr {
	in := &Instr{Op: op, Result: res, Args: args}
	b.Instrs = append(b.Instrs, in)

	return in
}

func (b *Block) Last() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}

	return b.Instrs[len(b.Instrs)-1]
}

func (b *Block) RemoveLast() {
	b.Instrs = b.Instrs[:len(b.Instrs)-1]
}

// Terminated reports whether the block ends in ret, jump or cjump.
func (b *Block) Terminated() bool {
	l := b.Last()

	return l != nil && l.Op.IsTerminator()
}

func BlockLabel(n int) Label {
	return Label{Name: ".L" + strconv.Itoa(n)}
}
