package ir

import (
	"strconv"
	"strings"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/lowc/compiler/tp"
)

type (
	Op int

	// Operand is one of *Temp, *Local, ConstInt, *ConstStr, Symbol, Label.
	Operand interface {
		Type() *tp.Type
		String() string

		operand()
	}

	Temp struct {
		ID int
		T  *tp.Type
	}

	Local struct {
		Name  string
		T     *tp.Type
		Index int
		Param bool
	}

	ConstInt struct {
		Value int64
		T     *tp.Type
	}

	ConstStr struct {
		Value string
		Label string
		T     *tp.Type
	}

	Symbol struct {
		Name string
	}

	Label struct {
		Name string
	}

	// Instr operand shapes:
	//
	//	move    dst, src           dst is *Temp or *Local
	//	ret     [value]
	//	binary  r = l, r
	//	load    r = base, offset
	//	store   base, offset, value
	//	addr_of r = *Local | Symbol
	//	call    [r] = Symbol, args...
	//	syscall r = num, args...
	//	jump    Label
	//	cjump   cond, Label, sentinel    jumps if (cond != 0) == (sentinel == 1)
	//	label   Label
	Instr struct {
		Op     Op
		Result *Temp
		Args   []Operand
	}
)

const (
	OpMove Op = iota
	OpRet
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpEq
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpLoad
	OpStore
	OpAddrOf
	OpCall
	OpSyscall
	OpJump
	OpCJump
	OpLabel

	opCount
)

var opNames = [...]string{
	OpMove:    "move",
	OpRet:     "ret",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mult",
	OpDiv:     "div",
	OpAnd:     "and",
	OpEq:      "eq",
	OpNeq:     "neq",
	OpLt:      "lt",
	OpLeq:     "leq",
	OpGt:      "gt",
	OpGeq:     "geq",
	OpLoad:    "load",
	OpStore:   "store",
	OpAddrOf:  "addr_of",
	OpCall:    "call",
	OpSyscall: "syscall",
	OpJump:    "jump",
	OpCJump:   "cjump",
	OpLabel:   "label",
}

var binaryOps = map[string]Op{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"&":  OpAnd,
	"==": OpEq,
	"!=": OpNeq,
	"<":  OpLt,
	"<=": OpLeq,
	">":  OpGt,
	">=": OpGeq,
}

// BinaryOp maps a source operator to its opcode.
func BinaryOp(op string) (Op, bool) {
	o, ok := binaryOps[op]
	return o, ok
}

func (op Op) String() string {
	if op < 0 || op >= opCount {
		return "op(" + strconv.Itoa(int(op)) + ")"
	}

	return opNames[op]
}

func (op Op) Valid() bool { return op >= 0 && op < opCount }

func (op Op) IsTerminator() bool {
	return op == OpRet || op == OpJump || op == OpCJump
}

func (op Op) IsCompare() bool {
	return op >= OpEq && op <= OpGeq
}

func (*Temp) operand()     {}
func (*Local) operand()    {}
func (ConstInt) operand()  {}
func (*ConstStr) operand() {}
func (Symbol) operand()    {}
func (Label) operand()     {}

func (x *Temp) Type() *tp.Type     { return x.T }
func (x *Local) Type() *tp.Type    { return x.T }
func (x ConstInt) Type() *tp.Type  { return x.T }
func (x *ConstStr) Type() *tp.Type { return x.T }
func (x Symbol) Type() *tp.Type    { return nil }
func (x Label) Type() *tp.Type     { return nil }

func (x *Temp) String() string     { return "t" + strconv.Itoa(x.ID) }
func (x *Local) String() string    { return "%" + x.Name }
func (x ConstInt) String() string  { return strconv.FormatInt(x.Value, 10) }
func (x *ConstStr) String() string { return x.Label }
func (x Symbol) String() string    { return "@" + x.Name }
func (x Label) String() string     { return x.Name }

func (x *Temp) TlogAppend(b []byte) []byte     { return appendOperand(b, x) }
func (x *Local) TlogAppend(b []byte) []byte    { return appendOperand(b, x) }
func (x ConstInt) TlogAppend(b []byte) []byte  { return appendOperand(b, x) }
func (x *ConstStr) TlogAppend(b []byte) []byte { return appendOperand(b, x) }
func (x Symbol) TlogAppend(b []byte) []byte    { return appendOperand(b, x) }
func (x Label) TlogAppend(b []byte) []byte     { return appendOperand(b, x) }

func appendOperand(b []byte, x Operand) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, x.String())
}

// Def returns the temporary the instruction writes, if any.
func (in *Instr) Def() *Temp {
	if in.Result != nil {
		return in.Result
	}

	if in.Op == OpMove {
		t, _ := in.Args[0].(*Temp)
		return t
	}

	return nil
}

// Uses returns the operands the instruction reads in order.
func (in *Instr) Uses() []Operand {
	if in.Op == OpMove {
		return in.Args[1:]
	}

	return in.Args
}

// Target returns the branch target of jump and cjump.
func (in *Instr) Target() (Label, bool) {
	switch in.Op {
	case OpJump:
		l, ok := in.Args[0].(Label)
		return l, ok
	case OpCJump:
		l, ok := in.Args[1].(Label)
		return l, ok
	}

	return Label{}, false
}

func (in *Instr) String() string {
	var b strings.Builder

	if in.Result != nil {
		b.WriteString(in.Result.String())
		b.WriteString(":")
		b.WriteString(in.Result.T.String())
		b.WriteString(" = ")
	}

	b.WriteString(in.Op.String())

	for i, a := range in.Args {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}

		b.WriteString(a.String())
	}

	return b.String()
}
