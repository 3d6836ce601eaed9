package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/asm"
	"github.com/slowlang/lowc/compiler/df"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/tp"
)

type (
	funEmitter struct {
		m    *ir.Module
		f    *ir.Func
		conv asm.Convention
		live *df.Liveness

		t  *asm.Text
		a  *Allocator
		fr *Frame

		bp, ret, base, index *asm.Reg

		consts map[int]ir.ConstInt
		bound  []*asm.Reg

		scratches []*asm.Reg

		block   int
		lastUse map[int]int
	}
)

var setcc = map[ir.Op][2]string{
	ir.OpEq:  {"sete", "sete"},
	ir.OpNeq: {"setne", "setne"},
	ir.OpLt:  {"setl", "setb"},
	ir.OpLeq: {"setle", "setbe"},
	ir.OpGt:  {"setg", "seta"},
	ir.OpGeq: {"setge", "setae"},
}

var swapped = map[ir.Op]ir.Op{
	ir.OpEq:  ir.OpEq,
	ir.OpNeq: ir.OpNeq,
	ir.OpLt:  ir.OpGt,
	ir.OpLeq: ir.OpGeq,
	ir.OpGt:  ir.OpLt,
	ir.OpGeq: ir.OpLeq,
}

func newFunEmitter(m *ir.Module, f *ir.Func, conv asm.Convention, live *df.Liveness, fr *Frame) (*funEmitter, error) {
	e := &funEmitter{
		m:    m,
		f:    f,
		conv: conv,
		live: live,

		t:  &asm.Text{},
		a:  NewAllocator(conv.Scratch()),
		fr: fr,

		consts: map[int]ir.ConstInt{},
		bound:  make([]*asm.Reg, len(f.Temps)),
	}

	var err error

	for _, x := range []struct {
		r    **asm.Reg
		role asm.Role
	}{
		{&e.bp, asm.RoleBasePointer},
		{&e.ret, asm.RoleReturn},
		{&e.base, asm.RoleAddrBase},
		{&e.index, asm.RoleAddrIndex},
	} {
		*x.r, err = conv.Role(x.role)
		if err != nil {
			return nil, err
		}
	}

	return e, nil
}

// body emits all blocks of the function.
func (e *funEmitter) body(ctx context.Context) (err error) {
	for bi, b := range e.f.Blocks {
		e.block = bi
		e.t.Label(b.Label.Name)

		e.lastUse = lastUses(b)

		for i, in := range b.Instrs {
			last := bi == len(e.f.Blocks)-1 && i == len(b.Instrs)-1

			err = e.instr(ctx, in, last)
			if err != nil {
				return errors.Wrap(err, "block %v: %v", b.Label, in)
			}

			err = e.releaseDead(in, i)
			if err != nil {
				return errors.Wrap(err, "block %v: %v", b.Label, in)
			}
		}

		if !b.Terminated() {
			err = e.flush()
			if err != nil {
				return errors.Wrap(err, "block %v", b.Label)
			}
		}
	}

	return nil
}

func lastUses(b *ir.Block) map[int]int {
	m := map[int]int{}

	for i, in := range b.Instrs {
		for _, a := range in.Args {
			if t, ok := a.(*ir.Temp); ok {
				m[t.ID] = i
			}
		}

		if in.Result != nil {
			m[in.Result.ID] = i
		}
	}

	return m
}

func (e *funEmitter) instr(ctx context.Context, in *ir.Instr, last bool) (err error) {
	e.scratches = e.scratches[:0]

	switch in.Op {
	case ir.OpMove:
		err = e.move(in)
	case ir.OpAdd, ir.OpSub, ir.OpAnd:
		err = e.binary(in)
	case ir.OpMul:
		if signed(in.Result.T) {
			err = e.binary(in)
		} else {
			err = e.mulDiv(in)
		}
	case ir.OpDiv:
		err = e.mulDiv(in)
	case ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLeq, ir.OpGt, ir.OpGeq:
		err = e.compare(in)
	case ir.OpLoad:
		err = e.load(in)
	case ir.OpStore:
		err = e.store(in)
	case ir.OpAddrOf:
		err = e.addrOf(in)
	case ir.OpCall:
		err = e.call(in)
	case ir.OpSyscall:
		err = e.syscall(in)
	case ir.OpRet:
		err = e.retInstr(in, last)
	case ir.OpJump:
		err = e.jump(in)
	case ir.OpCJump:
		err = e.cjump(in)
	case ir.OpLabel:
		l, ok := in.Args[0].(ir.Label)
		if !ok {
			return errors.New("label operand %v", in.Args[0])
		}

		e.t.Label(l.Name)
	default:
		return errors.New("unsupported opcode %v", in.Op)
	}

	if err != nil {
		return err
	}

	for i := len(e.scratches) - 1; i >= 0; i-- {
		err = e.a.Release(e.scratches[i])
		if err != nil {
			return errors.Wrap(err, "scratch")
		}
	}

	if tlog.If("emit") {
		tlog.Printw("emit", "func", e.f.Name, "instr", in.String(), "free", e.a.Free())
	}

	return nil
}

// releaseDead frees registers of temps the block doesn't use after i.
func (e *funEmitter) releaseDead(in *ir.Instr, i int) error {
	out := e.live.LiveOut(e.block)

	rel := func(t *ir.Temp) error {
		r := e.bound[t.ID]

		if r == nil || e.lastUse[t.ID] != i || out.IsSet(t.ID) {
			return nil
		}

		e.bound[t.ID] = nil

		return e.a.Release(r)
	}

	for _, a := range in.Args {
		if t, ok := a.(*ir.Temp); ok {
			err := rel(t)
			if err != nil {
				return err
			}
		}
	}

	if in.Result != nil {
		return rel(in.Result)
	}

	return nil
}

// flush stores live out temps to their slots and frees every register.
func (e *funEmitter) flush() error {
	out := e.live.LiveOut(e.block)

	for id, r := range e.bound {
		if r == nil {
			continue
		}

		if out.IsSet(id) {
			t := e.f.Temps[id]

			err := e.t.Move(e.tempSlot(t), asm.Register{R: r, Bits: work(t.T)}, signed(t.T), nil)
			if err != nil {
				return errors.Wrap(err, "store %v", t)
			}
		}

		e.bound[id] = nil

		err := e.a.Release(r)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *funEmitter) move(in *ir.Instr) error {
	src := in.Args[1]

	if t, ok := src.(*ir.Temp); ok {
		if c, ok := e.consts[t.ID]; ok {
			src = c
		}
	}

	switch dst := in.Args[0].(type) {
	case *ir.Temp:
		if c, ok := src.(ir.ConstInt); ok {
			if r := e.bound[dst.ID]; r != nil {
				e.bound[dst.ID] = nil

				err := e.a.Release(r)
				if err != nil {
					return err
				}
			}

			c.Value = truncate(c.Value, dst.T)
			c.T = dst.T

			e.consts[dst.ID] = c

			return nil
		}

		s, err := e.operand(src)
		if err != nil {
			return errors.Wrap(err, "source")
		}

		d, err := e.dest(dst)
		if err != nil {
			return err
		}

		err = e.t.Move(d, s, signed(src.Type()), e.ret)
		if err != nil {
			return err
		}

		if st := src.Type(); st != nil && st.Bits <= dst.T.Bits {
			return nil
		}

		return e.narrow(dst, d)
	case *ir.Local:
		err := scalar(dst.T)
		if err != nil {
			return errors.Wrap(err, "local %v", dst)
		}

		s, err := e.operand(src)
		if err != nil {
			return errors.Wrap(err, "source")
		}

		d, err := e.operand(dst)
		if err != nil {
			return err
		}

		return e.t.Move(d, s, signed(src.Type()), e.ret)
	default:
		return errors.New("move to %v", in.Args[0])
	}
}

// result returns a register to compute the result in
// and whether it must be stored to the slot afterwards.
func (e *funEmitter) result(x *ir.Temp, bits int) (asm.Register, bool, error) {
	d, err := e.dest(x)
	if err != nil {
		return asm.Register{}, false, err
	}

	if r, ok := d.(asm.Register); ok {
		r, err = r.Sized(bits)

		return r, false, err
	}

	r, err := e.scratch(bits)

	return r, true, err
}

func (e *funEmitter) spill(x *ir.Temp, r asm.Register) error {
	return e.t.Move(e.tempSlot(x), r, signed(x.T), nil)
}

func (e *funEmitter) binary(in *ir.Instr) error {
	l, r := in.Args[0], in.Args[1]
	w := work(in.Result.T)

	lop, err := e.operand(l)
	if err != nil {
		return errors.Wrap(err, "left")
	}

	rop, err := e.operand(r)
	if err != nil {
		return errors.Wrap(err, "right")
	}

	d, spilled, err := e.result(in.Result, w)
	if err != nil {
		return err
	}

	err = e.t.Move(d, lop, signed(l.Type()), nil)
	if err != nil {
		return errors.Wrap(err, "left")
	}

	rop, err = e.at(rop, w, signed(r.Type()))
	if err != nil {
		return errors.Wrap(err, "right")
	}

	op := "add"

	switch in.Op {
	case ir.OpSub:
		op = "sub"
	case ir.OpAnd:
		op = "and"
	case ir.OpMul:
		op = "imul"
	}

	e.t.Ins(op, d, rop)

	if spilled {
		return e.spill(in.Result, d)
	}

	return e.narrow(in.Result, d)
}

// narrow brings a register holding a temp narrower than the register
// back into the range of the temp type.
func (e *funEmitter) narrow(x *ir.Temp, d asm.Operand) error {
	r, ok := d.(asm.Register)
	if !ok || x.T.Bits >= r.Bits || x.T.Bits == 0 {
		return nil
	}

	s, err := r.Sized(x.T.Bits)
	if err != nil {
		return err
	}

	op := "movzx"
	if signed(x.T) {
		op = "movsx"
	}

	e.t.Ins(op, r, s)

	return nil
}

// truncate wraps v into the range of t.
func truncate(v int64, t *tp.Type) int64 {
	if t == nil || t.Bits <= 0 || t.Bits >= 64 {
		return v
	}

	v &= 1<<t.Bits - 1

	if signed(t) && v&(1<<(t.Bits-1)) != 0 {
		v -= 1 << t.Bits
	}

	return v
}

// mulDiv emits unsigned mul and div through the implicit rax:rdx operands.
func (e *funEmitter) mulDiv(in *ir.Instr) error {
	l, r := in.Args[0], in.Args[1]
	w := work(in.Result.T)
	sig := signed(in.Result.T)

	lo, hi, quot := asm.RoleMulLow, asm.RoleMulHigh, asm.RoleMulLow
	if in.Op == ir.OpDiv {
		lo, hi, quot = asm.RoleDivDividend, asm.RoleDivRemainder, asm.RoleDivQuotient
	}

	var regs [3]*asm.Reg

	for i, role := range []asm.Role{lo, hi, quot} {
		reg, err := e.conv.Role(role)
		if err != nil {
			return err
		}

		regs[i] = reg
	}

	lop, err := e.operand(l)
	if err != nil {
		return errors.Wrap(err, "left")
	}

	rop, err := e.operand(r)
	if err != nil {
		return errors.Wrap(err, "right")
	}

	acc := asm.Register{R: regs[0], Bits: w}
	high := asm.Register{R: regs[1], Bits: w}

	err = e.t.Move(acc, lop, signed(l.Type()), nil)
	if err != nil {
		return errors.Wrap(err, "left")
	}

	rop, err = e.at(rop, w, signed(r.Type()))
	if err != nil {
		return errors.Wrap(err, "right")
	}

	if _, ok := rop.(asm.Imm); ok {
		s, err := e.scratch(w)
		if err != nil {
			return err
		}

		err = e.t.Move(s, rop, signed(r.Type()), nil)
		if err != nil {
			return err
		}

		rop = s
	}

	switch {
	case in.Op == ir.OpMul:
		e.t.Ins("mul", rop)
	case sig && w == 64:
		e.t.Ins("cqo")
		e.t.Ins("idiv", rop)
	case sig:
		e.t.Ins("cdq")
		e.t.Ins("idiv", rop)
	default:
		e.t.Ins("xor", high, high)
		e.t.Ins("div", rop)
	}

	d, err := e.dest(in.Result)
	if err != nil {
		return err
	}

	err = e.t.Move(d, asm.Register{R: regs[2], Bits: w}, sig, nil)
	if err != nil {
		return err
	}

	return e.narrow(in.Result, d)
}

func (e *funEmitter) compare(in *ir.Instr) error {
	op := in.Op
	l, r := in.Args[0], in.Args[1]

	lc, lok := e.constOf(l)
	rc, rok := e.constOf(r)

	if lok && rok {
		e.consts[in.Result.ID] = ir.ConstInt{Value: b2i(fold(op, lc, rc, signed(l.Type()))), T: in.Result.T}
		return nil
	}

	if lok {
		op = swapped[op]
		l, r = r, l
	}

	w := max(work(l.Type()), work(r.Type()))
	sig := signed(l.Type()) || signed(r.Type())

	lop, err := e.operand(l)
	if err != nil {
		return errors.Wrap(err, "left")
	}

	rop, err := e.operand(r)
	if err != nil {
		return errors.Wrap(err, "right")
	}

	lop, err = e.at(lop, w, signed(l.Type()))
	if err != nil {
		return errors.Wrap(err, "left")
	}

	rop, err = e.at(rop, w, signed(r.Type()))
	if err != nil {
		return errors.Wrap(err, "right")
	}

	if _, ok := lop.(asm.Mem); ok {
		if _, ok := rop.(asm.Mem); ok {
			s, err := e.scratch(w)
			if err != nil {
				return err
			}

			err = e.t.Move(s, rop, signed(r.Type()), nil)
			if err != nil {
				return err
			}

			rop = s
		}
	}

	d, err := e.dest(in.Result)
	if err != nil {
		return err
	}

	set := setcc[op][0]
	if !sig {
		set = setcc[op][1]
	}

	switch d := d.(type) {
	case asm.Register:
		d32, err := d.Sized(32)
		if err != nil {
			return err
		}

		d8, err := d.Sized(8)
		if err != nil {
			return err
		}

		e.t.Ins("xor", d32, d32)
		e.t.Ins("cmp", lop, rop)
		e.t.Ins(set, d8)
	case asm.Mem:
		e.t.Ins("cmp", lop, rop)
		e.t.Ins(set, d.Resize(8))
	}

	return nil
}

func (e *funEmitter) constOf(x ir.Operand) (int64, bool) {
	switch x := x.(type) {
	case ir.ConstInt:
		return x.Value, true
	case *ir.Temp:
		c, ok := e.consts[x.ID]
		return c.Value, ok
	}

	return 0, false
}

func fold(op ir.Op, l, r int64, sig bool) bool {
	if !sig {
		ul, ur := uint64(l), uint64(r)

		switch op {
		case ir.OpLt:
			return ul < ur
		case ir.OpLeq:
			return ul <= ur
		case ir.OpGt:
			return ul > ur
		case ir.OpGeq:
			return ul >= ur
		}
	}

	switch op {
	case ir.OpEq:
		return l == r
	case ir.OpNeq:
		return l != r
	case ir.OpLt:
		return l < r
	case ir.OpLeq:
		return l <= r
	case ir.OpGt:
		return l > r
	default:
		return l >= r
	}
}

func b2i(x bool) int64 {
	if x {
		return 1
	}

	return 0
}

// address puts base and offset into the address roles.
func (e *funEmitter) address(base, off ir.Operand, bits int) (asm.Mem, error) {
	bop, err := e.operand(base)
	if err != nil {
		return asm.Mem{}, errors.Wrap(err, "base")
	}

	oop, err := e.operand(off)
	if err != nil {
		return asm.Mem{}, errors.Wrap(err, "offset")
	}

	err = e.t.Move(asm.Register{R: e.base, Bits: 64}, bop, false, nil)
	if err != nil {
		return asm.Mem{}, errors.Wrap(err, "base")
	}

	err = e.t.Move(asm.Register{R: e.index, Bits: 64}, oop, signed(off.Type()), nil)
	if err != nil {
		return asm.Mem{}, errors.Wrap(err, "offset")
	}

	return asm.Mem{Base: e.base, Index: e.index, Bits: bits}, nil
}

func (e *funEmitter) load(in *ir.Instr) error {
	x := in.Result

	err := scalar(x.T)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	m, err := e.address(in.Args[0], in.Args[1], x.T.Bits)
	if err != nil {
		return err
	}

	d, err := e.dest(x)
	if err != nil {
		return err
	}

	return e.t.Move(d, m, signed(x.T), e.ret)
}

func (e *funEmitter) store(in *ir.Instr) error {
	v := in.Args[2]

	err := scalar(v.Type())
	if err != nil {
		return errors.Wrap(err, "store")
	}

	vop, err := e.operand(v)
	if err != nil {
		return errors.Wrap(err, "value")
	}

	m, err := e.address(in.Args[0], in.Args[1], v.Type().Bits)
	if err != nil {
		return err
	}

	return e.t.Move(m, vop, signed(v.Type()), e.ret)
}

func (e *funEmitter) addrOf(in *ir.Instr) error {
	var src asm.Mem

	switch x := in.Args[0].(type) {
	case *ir.Local:
		off, ok := e.fr.LocalSlot(x)
		if !ok {
			return errors.New("local %v: not in frame", x)
		}

		src = asm.Mem{Base: e.bp, Disp: off}
	case ir.Symbol:
		src = asm.Mem{Symbol: x.Name, PIC: e.conv.PIC()}
	default:
		return errors.New("address of %v", x)
	}

	d, err := e.dest(in.Result)
	if err != nil {
		return err
	}

	if r, ok := d.(asm.Register); ok && src.Symbol != "" && src.PIC {
		r, err = r.Sized(64)
		if err != nil {
			return err
		}

		e.t.Ins("lea", r, src)

		return nil
	}

	b := asm.Register{R: e.base, Bits: 64}

	e.t.Ins("lea", b, src)

	return e.t.Move(d, b, false, nil)
}

func (e *funEmitter) args(xs []ir.Operand) (ops []asm.Operand, sig []bool, err error) {
	for i, x := range xs {
		op, err := e.operand(x)
		if err != nil {
			return nil, nil, errors.Wrap(err, "arg %d", i)
		}

		ops = append(ops, op)
		sig = append(sig, signed(x.Type()))
	}

	return ops, sig, nil
}

func (e *funEmitter) call(in *ir.Instr) error {
	target, err := e.operand(in.Args[0])
	if err != nil {
		return errors.Wrap(err, "target")
	}

	ops, sig, err := e.args(in.Args[1:])
	if err != nil {
		return err
	}

	err = e.conv.EmitCall(e.t, target, ops, sig)
	if err != nil {
		return err
	}

	return e.retval(in.Result)
}

func (e *funEmitter) syscall(in *ir.Instr) error {
	num, err := e.operand(in.Args[0])
	if err != nil {
		return errors.Wrap(err, "number")
	}

	ops, sig, err := e.args(in.Args[1:])
	if err != nil {
		return err
	}

	err = e.conv.EmitSyscall(e.t, num, ops, sig, e.a)
	if err != nil {
		return err
	}

	return e.retval(in.Result)
}

func (e *funEmitter) retval(x *ir.Temp) error {
	if x == nil {
		return nil
	}

	d, err := e.dest(x)
	if err != nil {
		return err
	}

	err = e.t.Move(d, asm.Register{R: e.ret, Bits: work(x.T)}, signed(x.T), nil)
	if err != nil {
		return err
	}

	return e.narrow(x, d)
}

func (e *funEmitter) retInstr(in *ir.Instr, last bool) error {
	if len(in.Args) != 0 {
		v := in.Args[0]

		t := e.f.Ret
		if t.IsVoid() {
			t = v.Type()
		}

		op, err := e.operand(v)
		if err != nil {
			return errors.Wrap(err, "value")
		}

		err = e.t.Move(asm.Register{R: e.ret, Bits: work(t)}, op, signed(v.Type()), nil)
		if err != nil {
			return err
		}
	} else {
		r := asm.Register{R: e.ret, Bits: 32}
		e.t.Ins("xor", r, r)
	}

	err := e.flush()
	if err != nil {
		return err
	}

	if !last {
		e.t.Ins("jmp", asm.Label{Name: endLabel})
	}

	return nil
}

func (e *funEmitter) jump(in *ir.Instr) error {
	l, _ := in.Target()

	err := e.flush()
	if err != nil {
		return err
	}

	to := e.f.BlockIndex(l)
	if to < 0 {
		return errors.New("no such label: %v", l)
	}

	if to == e.block+1 {
		return nil
	}

	e.t.Ins("jmp", asm.Label{Name: l.Name})

	return nil
}

func (e *funEmitter) cjump(in *ir.Instr) error {
	cond := in.Args[0]
	l, _ := in.Target()

	sentinel, ok := in.Args[2].(ir.ConstInt)
	if !ok {
		return errors.New("cjump sentinel %v", in.Args[2])
	}

	onTrue := sentinel.Value == 1

	if c, ok := e.constOf(cond); ok {
		err := e.flush()
		if err != nil {
			return err
		}

		if (c != 0) == onTrue {
			e.t.Ins("jmp", asm.Label{Name: l.Name})
		}

		return nil
	}

	op, err := e.operand(cond)
	if err != nil {
		return errors.Wrap(err, "condition")
	}

	e.t.Ins("cmp", op, asm.Imm{Value: 0, Bits: op.Size()})

	err = e.flush()
	if err != nil {
		return err
	}

	jcc := "je"
	if onTrue {
		jcc = "jne"
	}

	e.t.Ins(jcc, asm.Label{Name: l.Name})

	return nil
}
