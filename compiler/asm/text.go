package asm

import (
	"github.com/nikandfor/hacked/hfmt"

	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/set"
)

type (
	// Text accumulates assembly lines and records every register
	// referenced by emitted instructions.
	Text struct {
		Lines []string

		Used set.Bits[int]

		buf []byte
	}
)

func (t *Text) Ins(op string, args ...Operand) {
	b := append(t.buf[:0], '\t')
	b = append(b, op...)

	for i, a := range args {
		if i == 0 {
			b = append(b, ' ')
		} else {
			b = append(b, ", "...)
		}

		b = append(b, a.String()...)

		t.touch(a)
	}

	t.buf = b
	t.Lines = append(t.Lines, string(b))
}

func (t *Text) Label(name string) {
	t.Raw("%s:", name)
}

func (t *Text) Raw(f string, args ...any) {
	t.buf = hfmt.Appendf(t.buf[:0], f, args...)
	t.Lines = append(t.Lines, string(t.buf))
}

func (t *Text) Comment(f string, args ...any) {
	t.buf = append(t.buf[:0], "\t; "...)
	t.buf = hfmt.Appendf(t.buf, f, args...)
	t.Lines = append(t.Lines, string(t.buf))
}

// Touched reports whether any emitted instruction referenced r.
func (t *Text) Touched(r *Reg) bool {
	return t.Used.IsSet(r.ID)
}

func (t *Text) Len() int { return len(t.Lines) }

func (t *Text) touch(a Operand) {
	switch a := a.(type) {
	case Register:
		t.Used.Set(a.R.ID)
	case Mem:
		if a.Base != nil {
			t.Used.Set(a.Base.ID)
		}

		if a.Index != nil {
			t.Used.Set(a.Index.ID)
		}
	}
}

// Move copies src into dst extending or truncating to dst width.
// Memory to memory moves and wide immediates go through via.
func (t *Text) Move(dst, src Operand, signed bool, via *Reg) error {
	switch d := dst.(type) {
	case Register:
		return t.moveToReg(d, src, signed)
	case Mem:
		return t.moveToMem(d, src, signed, via)
	default:
		return errors.New("move: bad destination %v", dst)
	}
}

func (t *Text) moveToReg(d Register, src Operand, signed bool) (err error) {
	switch s := src.(type) {
	case Register:
		switch {
		case s.Bits == d.Bits:
			if s.R == d.R {
				return nil
			}

			t.Ins("mov", d, s)
		case s.Bits > d.Bits:
			s, err = s.Sized(d.Bits)
			if err != nil {
				return err
			}

			if s.R != d.R {
				t.Ins("mov", d, s)
			}
		default:
			return t.extend(d, s, signed)
		}
	case Mem:
		switch {
		case s.Bits == d.Bits || s.Bits == 0:
			t.Ins("mov", d, s.Resize(d.Bits))
		case s.Bits > d.Bits:
			t.Ins("mov", d, s.Resize(d.Bits))
		default:
			return t.extend(d, s, signed)
		}
	case Imm:
		s.Bits = d.Bits
		s.Sized = false

		if d.Bits == 64 && s.Value >= 0 && s.Value < 1<<32 {
			d, err = d.Sized(32)
			if err != nil {
				return err
			}

			s.Bits = 32
		}

		if s.Value == 0 && d.Bits >= 32 {
			t.Ins("xor", d, d)
			return nil
		}

		t.Ins("mov", d, s)
	case Ptr:
		d, err = d.Sized(64)
		if err != nil {
			return err
		}

		if s.PIC {
			t.Ins("lea", d, s)
		} else {
			t.Ins("mov", d, s)
		}
	case Label:
		d, err = d.Sized(64)
		if err != nil {
			return err
		}

		t.Ins("lea", d, Mem{Symbol: s.Name, PIC: true})
	default:
		return errors.New("move: bad source %v", src)
	}

	return nil
}

func (t *Text) extend(d Register, s Operand, signed bool) error {
	switch {
	case s.Size() == 32 && d.Bits == 64 && signed:
		t.Ins("movsxd", d, s)
	case s.Size() == 32 && d.Bits == 64:
		d32, err := d.Sized(32)
		if err != nil {
			return err
		}

		if r, ok := s.(Register); ok && r.R == d.R {
			t.Ins("mov", d32, r)
			return nil
		}

		t.Ins("mov", d32, s)
	case signed:
		t.Ins("movsx", d, s)
	default:
		t.Ins("movzx", d, s)
	}

	return nil
}

func (t *Text) moveToMem(d Mem, src Operand, signed bool, via *Reg) error {
	switch s := src.(type) {
	case Register:
		if s.Bits < d.Bits {
			r, err := s.Sized(d.Bits)
			if err != nil {
				return err
			}

			err = t.extend(r, s, signed)
			if err != nil {
				return err
			}

			s = r
		}

		r, err := s.Sized(d.Bits)
		if err != nil {
			return err
		}

		t.Ins("mov", d, r)

		return nil
	case Imm:
		if d.Bits < 64 || s.Fits32() {
			s.Bits = d.Bits
			s.Sized = false

			t.Ins("mov", d, s)

			return nil
		}
	}

	if via == nil {
		return errors.New("move: %v to %v needs a register", src, d)
	}

	bits := d.Bits
	if bits < 32 {
		bits = 32
	}

	r, err := RegOf(via, bits)
	if err != nil {
		return err
	}

	err = t.moveToReg(r, src, signed)
	if err != nil {
		return err
	}

	return t.moveToMem(d, r, signed, nil)
}

// Push pushes a 64 bit copy of the operand.
func (t *Text) Push(o Operand, signed bool, via *Reg) error {
	switch o := o.(type) {
	case Register:
		r, err := o.Sized(64)
		if err != nil {
			return err
		}

		if o.Bits == 32 && signed {
			t.Ins("movsxd", r, o)
		}

		t.Ins("push", r)

		return nil
	case Mem:
		if o.Bits == 64 {
			t.Ins("push", o)
			return nil
		}
	case Imm:
		if o.Fits32() {
			o.Bits = 64
			o.Sized = true

			t.Ins("push", o)

			return nil
		}
	}

	if via == nil {
		return errors.New("push: %v needs a register", o)
	}

	r, err := RegOf(via, 64)
	if err != nil {
		return err
	}

	err = t.moveToReg(r, o, signed)
	if err != nil {
		return err
	}

	t.Ins("push", r)

	return nil
}
