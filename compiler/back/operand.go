package back

import (
	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/asm"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/tp"
)

// work is the register width used to compute values of type t.
func work(t *tp.Type) int {
	if t.Bits > 32 {
		return 64
	}

	return 32
}

func signed(t *tp.Type) bool {
	return t != nil && t.Signed && !t.IsPtr()
}

func (e *funEmitter) slot(off, bits int) asm.Mem {
	return asm.Mem{Base: e.bp, Disp: off, Bits: bits}
}

func (e *funEmitter) tempSlot(t *ir.Temp) asm.Mem {
	return e.slot(e.fr.TempSlot(t), t.T.Bits)
}

// operand resolves an IR operand for reading.
// Temps are reloaded into a register if one is available.
func (e *funEmitter) operand(x ir.Operand) (asm.Operand, error) {
	switch x := x.(type) {
	case *ir.Local:
		off, ok := e.fr.LocalSlot(x)
		if !ok {
			return nil, errors.New("local %v: not in frame", x)
		}

		return e.slot(off, scalarBits(x.T)), nil
	case *ir.Temp:
		if c, ok := e.consts[x.ID]; ok {
			return asm.Imm{Value: c.Value, Bits: work(x.T)}, nil
		}

		err := scalar(x.T)
		if err != nil {
			return nil, errors.Wrap(err, "temp %v", x)
		}

		if r := e.bound[x.ID]; r != nil {
			return asm.Register{R: r, Bits: work(x.T)}, nil
		}

		r, ok := e.a.AllocateTemp()
		if !ok {
			return e.tempSlot(x), nil
		}

		d := asm.Register{R: r, Bits: work(x.T)}

		err = e.t.Move(d, e.tempSlot(x), signed(x.T), nil)
		if err != nil {
			return nil, errors.Wrap(err, "reload %v", x)
		}

		e.bound[x.ID] = r

		return d, nil
	case ir.ConstInt:
		bits := 32
		if x.T != nil {
			bits = work(x.T)
		}

		return asm.Imm{Value: truncate(x.Value, x.T), Bits: bits}, nil
	case *ir.ConstStr:
		return asm.Ptr{Label: x.Label, PIC: e.conv.PIC()}, nil
	case ir.Symbol:
		return e.symbol(x)
	case ir.Label:
		return asm.Label{Name: x.Name}, nil
	default:
		return nil, errors.New("unsupported operand %T", x)
	}
}

func (e *funEmitter) symbol(x ir.Symbol) (asm.Operand, error) {
	if s, ok := e.m.StringByLabel(x.Name); ok {
		return asm.Ptr{Label: s.Label, PIC: e.conv.PIC()}, nil
	}

	if _, ok := e.m.Func(x.Name); ok {
		return asm.Label{Name: x.Name}, nil
	}

	if g, ok := e.m.Global(x.Name); ok {
		return asm.Mem{Symbol: g.Name, PIC: e.conv.PIC(), Bits: scalarBits(g.Type)}, nil
	}

	return nil, errors.New("unknown symbol: %v", x.Name)
}

// dest returns where the result temp lives: its register or its slot.
func (e *funEmitter) dest(x *ir.Temp) (asm.Operand, error) {
	err := scalar(x.T)
	if err != nil {
		return nil, errors.Wrap(err, "result %v", x)
	}

	delete(e.consts, x.ID)

	if r := e.bound[x.ID]; r != nil {
		return asm.Register{R: r, Bits: work(x.T)}, nil
	}

	r, ok := e.a.AllocateTemp()
	if !ok {
		return e.tempSlot(x), nil
	}

	e.bound[x.ID] = r

	return asm.Register{R: r, Bits: work(x.T)}, nil
}

// scratch allocates a register freed at the end of the instruction.
func (e *funEmitter) scratch(bits int) (asm.Register, error) {
	r, ok := e.a.Allocate()
	if !ok {
		return asm.Register{}, errors.New("out of scratch registers")
	}

	e.scratches = append(e.scratches, r)

	return asm.Register{R: r, Bits: bits}, nil
}

// at makes op usable as a second operand of width bits.
// Narrower memory and wide immediates go through a scratch register,
// narrower registers are extended in place.
func (e *funEmitter) at(op asm.Operand, bits int, sig bool) (asm.Operand, error) {
	switch x := op.(type) {
	case asm.Imm:
		x.Bits = bits

		if bits < 64 || x.Fits32() {
			return x, nil
		}
	case asm.Register:
		switch {
		case x.Bits == bits:
			return x, nil
		case x.Bits > bits:
			return x.Sized(bits)
		}

		d, err := x.Sized(bits)
		if err != nil {
			return nil, err
		}

		err = e.t.Move(d, x, sig, nil)
		if err != nil {
			return nil, err
		}

		return d, nil
	case asm.Mem:
		if x.Bits >= bits {
			return x.Resize(bits), nil
		}
	}

	r, err := e.scratch(bits)
	if err != nil {
		return nil, err
	}

	err = e.t.Move(r, op, sig, nil)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// scalar checks values of t fit a register.
func scalar(t *tp.Type) error {
	if t.IsVoid() || t.IsRecord() || t.Bits == 0 || t.Bits > 64 {
		return errors.New("%v values are not supported in registers", t)
	}

	return nil
}

// scalarBits is the access width of a slot, 0 for aggregates.
func scalarBits(t *tp.Type) int {
	if scalar(t) != nil {
		return 0
	}

	return t.Bits
}
