package asm

import (
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	Class int

	// Reg is a physical register. Names holds the register name
	// for 8, 16, 32 and 64 bit access; missing sizes are empty.
	Reg struct {
		ID    int
		Class Class
		Names [4]string
	}

	// Operand is one of Register, Mem, Imm, Label, Ptr.
	Operand interface {
		String() string
		Size() int

		operand()
	}

	Register struct {
		R    *Reg
		Bits int
	}

	Mem struct {
		Base   *Reg
		Index  *Reg
		Disp   int
		Bits   int
		Symbol string
		PIC    bool
	}

	Imm struct {
		Value int64
		Bits  int
		Sized bool
	}

	Label struct {
		Name string
	}

	// Ptr is the address of a data label.
	Ptr struct {
		Label string
		PIC   bool
	}
)

const (
	General Class = iota
	Float
)

var ErrRegisterSize = errors.New("unsupported register size")

func sizeIndex(bits int) int {
	switch bits {
	case 8:
		return 0
	case 16:
		return 1
	case 32:
		return 2
	case 64:
		return 3
	}

	return -1
}

// Name returns the register name for an access of the given width.
func (r *Reg) Name(bits int) (string, error) {
	i := sizeIndex(bits)
	if i < 0 || r.Names[i] == "" {
		return "", errors.Wrap(ErrRegisterSize, "%v: %d bits", r, bits)
	}

	return r.Names[i], nil
}

func (r *Reg) String() string {
	for i := len(r.Names) - 1; i >= 0; i-- {
		if r.Names[i] != "" {
			return r.Names[i]
		}
	}

	return "r" + strconv.Itoa(r.ID)
}

func (r *Reg) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if r == nil {
		return e.AppendNil(b)
	}

	return e.AppendString(b, r.String())
}

// RegOf makes a register operand checking the register has a name of that width.
func RegOf(r *Reg, bits int) (Register, error) {
	_, err := r.Name(bits)
	if err != nil {
		return Register{}, err
	}

	return Register{R: r, Bits: bits}, nil
}

func SizePrefix(bits int) string {
	switch bits {
	case 8:
		return "byte"
	case 16:
		return "word"
	case 32:
		return "dword"
	case 64:
		return "qword"
	}

	return ""
}

func (Register) operand() {}
func (Mem) operand()      {}
func (Imm) operand()      {}
func (Label) operand()    {}
func (Ptr) operand()      {}

func (x Register) Size() int { return x.Bits }
func (x Mem) Size() int      { return x.Bits }
func (x Imm) Size() int      { return x.Bits }
func (x Label) Size() int    { return 64 }
func (x Ptr) Size() int      { return 64 }

func (x Register) String() string {
	n, err := x.R.Name(x.Bits)
	if err != nil {
		panic(err)
	}

	return n
}

// Sized returns the same register at another width.
func (x Register) Sized(bits int) (Register, error) {
	return RegOf(x.R, bits)
}

func (x Register) Is(r *Reg) bool { return x.R == r }

func (x Mem) String() string {
	b := make([]byte, 0, 32)

	if p := SizePrefix(x.Bits); p != "" {
		b = append(b, p...)
		b = append(b, ' ')
	}

	b = append(b, '[')

	if x.Symbol != "" {
		if x.PIC {
			b = append(b, "rel "...)
		}

		b = append(b, x.Symbol...)
	}

	if x.Base != nil {
		b = append(b, x.Base.String()...)
	}

	if x.Index != nil {
		b = append(b, '+')
		b = append(b, x.Index.String()...)
	}

	if x.Disp > 0 {
		b = append(b, '+')
	}

	if x.Disp != 0 {
		b = strconv.AppendInt(b, int64(x.Disp), 10)
	}

	b = append(b, ']')

	return string(b)
}

// Resize returns the same memory location accessed with another width.
func (x Mem) Resize(bits int) Mem {
	x.Bits = bits
	return x
}

func (x Imm) String() string {
	v := strconv.FormatInt(x.Value, 10)

	if p := SizePrefix(x.Bits); x.Sized && p != "" {
		return p + " " + v
	}

	return v
}

// Fits32 reports whether the immediate can be encoded as a sign extended 32 bit value.
func (x Imm) Fits32() bool {
	return x.Value >= -1<<31 && x.Value < 1<<31
}

func (x Label) String() string { return x.Name }

func (x Ptr) String() string {
	if x.PIC {
		return "[rel " + x.Label + "]"
	}

	return x.Label
}
