package tp

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Type is a scalar, pointer or record value type.
	// Pointers have Elem set, records have Name set.
	Type struct {
		Name   string
		Bits   int
		Signed bool
		Align  int
		Elem   *Type
	}

	// Universe holds canonical types of one compilation session.
	Universe struct {
		PtrBits    int
		FatStrings bool

		Void    *Type
		Byte    *Type
		U16     *Type
		Int     *Type
		U64     *Type
		Long    *Type
		Bool    *Type
		VoidPtr *Type
		BytePtr *Type
		String  *Type

		ptrs    map[*Type]*Type
		records map[string]*Type
	}
)

func NewUniverse(ptrBits int, fatStrings bool) *Universe {
	u := &Universe{
		PtrBits:    ptrBits,
		FatStrings: fatStrings,

		ptrs:    map[*Type]*Type{},
		records: map[string]*Type{},
	}

	u.Void = &Type{Name: "void", Align: 1}
	u.Byte = &Type{Bits: 8, Align: 1}
	u.U16 = &Type{Bits: 16, Align: 2}
	u.Int = &Type{Bits: 32, Signed: true, Align: 4}
	u.U64 = &Type{Bits: 64, Align: 8}
	u.Long = &Type{Bits: 64, Signed: true, Align: 8}
	u.Bool = &Type{Name: "bool", Bits: 8, Align: 1}

	u.VoidPtr = u.PtrTo(u.Void)
	u.BytePtr = u.PtrTo(u.Byte)

	u.String = u.BytePtr

	if fatStrings {
		u.String = &Type{
			Name:  "string",
			Bits:  64 + ptrBits,
			Align: ptrBits / 8,
		}
	}

	return u
}

func (u *Universe) PtrTo(t *Type) *Type {
	if p, ok := u.ptrs[t]; ok {
		return p
	}

	p := &Type{
		Bits:  u.PtrBits,
		Align: u.PtrBits / 8,
		Elem:  t,
	}

	u.ptrs[t] = p

	return p
}

// Record returns the shared record type for a struct name.
// Bits and Align stay zero until SetLayout.
func (u *Universe) Record(name string) *Type {
	if r, ok := u.records[name]; ok {
		return r
	}

	r := &Type{Name: name}
	u.records[name] = r

	return r
}

func (u *Universe) SetLayout(name string, l Layout) {
	r := u.Record(name)

	r.Bits = l.Size * 8
	r.Align = l.Align
}

// Named maps a builtin type name to its canonical type.
func (u *Universe) Named(name string) (*Type, bool) {
	switch name {
	case "void":
		return u.Void, true
	case "byte", "u8", "char":
		return u.Byte, true
	case "u16":
		return u.U16, true
	case "int", "i32":
		return u.Int, true
	case "u64", "uint":
		return u.U64, true
	case "long", "i64":
		return u.Long, true
	case "bool":
		return u.Bool, true
	case "string", "str":
		return u.String, true
	}

	return nil, false
}

func (t *Type) Size() int {
	if t == nil {
		return 0
	}

	return t.Bits / 8
}

func (t *Type) IsVoid() bool { return t == nil || t.Bits == 0 && t.Elem == nil && t.Name == "void" }
func (t *Type) IsPtr() bool { return t != nil && t.Elem != nil }
func (t *Type) IsRecord() bool { return t != nil && t.Elem == nil && t.Name != "" && t.Name != "void" && t.Name != "bool" && t.Name != "string" }

// Equal compares types structurally, following pointer chains.
func (t *Type) Equal(x *Type) bool {
	if t == x {
		return true
	}

	if t == nil || x == nil {
		return false
	}

	if t.Bits != x.Bits || t.Signed != x.Signed || t.Align != x.Align || t.Name != x.Name {
		return false
	}

	if (t.Elem == nil) != (x.Elem == nil) {
		return false
	}

	if t.Elem == nil {
		return true
	}

	return t.Elem.Equal(x.Elem)
}

func (t *Type) String() string {
	switch {
	case t == nil:
		return "<nil>"
	case t.Elem != nil:
		return t.Elem.String() + "*"
	case t.Name != "":
		return t.Name
	case t.Bits == 8 && !t.Signed:
		return "byte"
	case t.Bits == 32 && t.Signed:
		return "int"
	case t.Bits == 64 && t.Signed:
		return "long"
	case t.Signed:
		return "i" + strconv.Itoa(t.Bits)
	default:
		return "u" + strconv.Itoa(t.Bits)
	}
}

func (t *Type) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if t == nil {
		return e.AppendNil(b)
	}

	return e.AppendString(b, t.String())
}
