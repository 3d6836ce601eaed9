package front

import (
	"context"
	"math"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/tp"
)

// value lowers an expression which must produce a value.
func (c *Front) value(ctx context.Context, s *funContext, e ast.Expr) (ir.Operand, error) {
	x, err := c.expr(ctx, s, e)
	if err != nil {
		return nil, err
	}

	if x == nil {
		return nil, errors.New("void value used")
	}

	return x, nil
}

func (c *Front) expr(ctx context.Context, s *funContext, e ast.Expr) (x ir.Operand, err error) {
	switch e := e.(type) {
	case *ast.Int:
		t := s.types.Int
		if e.Value > math.MaxInt32 || e.Value < math.MinInt32 {
			t = s.types.Long
		}

		return ir.ConstInt{Value: e.Value, T: t}, nil
	case *ast.Str:
		return s.Intern(e.Value, s.types.BytePtr), nil
	case *ast.Ident:
		return c.ident(ctx, s, e)
	case *ast.Binary:
		return c.binary(ctx, s, e)
	case *ast.Unary:
		return c.unary(ctx, s, e)
	case *ast.Call:
		return c.call(ctx, s, e)
	case *ast.Assign:
		return c.assign(ctx, s, e)
	case *ast.Index:
		base, off, elem, err := c.element(ctx, s, e)
		if err != nil {
			return nil, err
		}

		return s.loadAt(base, off, elem), nil
	case *ast.Field:
		base, off, ft, err := c.field(ctx, s, e)
		if err != nil {
			return nil, err
		}

		return s.loadAt(base, off, ft), nil
	case *ast.Cast:
		return c.cast(ctx, s, e)
	case *ast.Syscall:
		return c.syscall(ctx, s, e)
	case *ast.Foreign:
		return c.foreign(ctx, s, e)
	case nil:
		return nil, errors.New("missing expression")
	default:
		return nil, errors.New("unsupported expression: %T", e)
	}
}

func (c *Front) ident(ctx context.Context, s *funContext, e *ast.Ident) (ir.Operand, error) {
	if l, ok := s.lookup(e.Name); ok {
		return s.load(l), nil
	}

	if g, ok := s.globalByName(e.Name); ok {
		a := s.NewTemp(s.types.PtrTo(g.Type))
		s.emit(ir.OpAddrOf, a, ir.Symbol{Name: g.Name})

		return s.loadAt(a, ir.ConstInt{Value: 0, T: s.types.U64}, g.Type), nil
	}

	if f, ok := s.funcByName(e.Name); ok {
		a := s.NewTemp(s.types.VoidPtr)
		s.emit(ir.OpAddrOf, a, ir.Symbol{Name: f.Name})

		return a, nil
	}

	return nil, errors.New("undefined: %v", e.Name)
}

func (c *Front) binary(ctx context.Context, s *funContext, e *ast.Binary) (ir.Operand, error) {
	op, ok := ir.BinaryOp(e.Op)
	if !ok {
		return nil, errors.New("unsupported operator %q", e.Op)
	}

	l, err := c.value(ctx, s, e.Left)
	if err != nil {
		return nil, errors.Wrap(err, "left")
	}

	r, err := c.value(ctx, s, e.Right)
	if err != nil {
		return nil, errors.Wrap(err, "right")
	}

	return s.binary(op, l, r), nil
}

func (c *Front) unary(ctx context.Context, s *funContext, e *ast.Unary) (ir.Operand, error) {
	switch e.Op {
	case "&":
		return c.addrOf(ctx, s, e.X)
	case "-":
		if n, ok := e.X.(*ast.Int); ok {
			return c.expr(ctx, s, &ast.Int{Base: n.Base, Value: -n.Value})
		}

		x, err := c.value(ctx, s, e.X)
		if err != nil {
			return nil, err
		}

		return s.binary(ir.OpSub, ir.ConstInt{Value: 0, T: x.Type()}, x), nil
	default:
		return nil, errors.New("unsupported unary operator %q", e.Op)
	}
}

// addrOf lowers an addressable expression to a pointer.
func (c *Front) addrOf(ctx context.Context, s *funContext, e ast.Expr) (ir.Operand, error) {
	switch e := e.(type) {
	case *ast.Ident:
		if _, ok := s.lookup(e.Name); !ok {
			if g, ok := s.globalByName(e.Name); ok {
				a := s.NewTemp(s.types.PtrTo(g.Type))
				s.emit(ir.OpAddrOf, a, ir.Symbol{Name: g.Name})

				return a, nil
			}
		}

		x, err := c.value(ctx, s, e)
		if err != nil {
			return nil, err
		}

		a, ok := s.takeAddr(x)
		if !ok {
			return nil, errors.New("can't take address of %v", e.Name)
		}

		return a, nil
	case *ast.Field:
		base, off, ft, err := c.field(ctx, s, e)
		if err != nil {
			return nil, err
		}

		return s.offset(base, off, ft), nil
	case *ast.Index:
		base, off, elem, err := c.element(ctx, s, e)
		if err != nil {
			return nil, err
		}

		return s.offset(base, off, elem), nil
	default:
		return nil, errors.New("can't take address of %T", e)
	}
}

// takeAddr replaces the move of a local into x emitted just before
// with taking the local address.
func (s *funContext) takeAddr(x ir.Operand) (*ir.Temp, bool) {
	t, ok := x.(*ir.Temp)
	last := s.b.Last()

	if !ok || last == nil || last.Op != ir.OpMove || last.Args[0] != ir.Operand(t) {
		return nil, false
	}

	l, ok := last.Args[1].(*ir.Local)
	if !ok {
		return nil, false
	}

	s.b.RemoveLast()

	a := s.NewTemp(s.types.PtrTo(l.T))
	s.emit(ir.OpAddrOf, a, l)

	return a, true
}

// field resolves a field access against the declared type of its base:
// a record for direct access or a pointer to record for indirect one.
func (c *Front) field(ctx context.Context, s *funContext, e *ast.Field) (base, off ir.Operand, ft *tp.Type, err error) {
	if e.Indirect {
		base, err = c.value(ctx, s, e.X)
	} else {
		base, err = c.addrOf(ctx, s, e.X)
	}
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "field %v", e.Name)
	}

	pt := base.Type()

	if !pt.IsPtr() || !pt.Elem.IsRecord() {
		return nil, nil, nil, errors.New("field %v: %v is not a struct", e.Name, derefName(pt, e.Indirect))
	}

	st, ok := s.Struct(pt.Elem.Name)
	if !ok {
		return nil, nil, nil, errors.New("field %v: unknown struct %v", e.Name, pt.Elem.Name)
	}

	o, ft, err := st.FieldOffset(e.Name)
	if err != nil {
		return nil, nil, nil, err
	}

	tlog.V("field").Printw("field", "struct", st.Name, "field", e.Name, "offset", o, "indirect", e.Indirect)

	return base, ir.ConstInt{Value: int64(o), T: s.types.U64}, ft, nil
}

func derefName(t *tp.Type, indirect bool) string {
	if !indirect && t.IsPtr() {
		return t.Elem.String()
	}

	return t.String()
}

// element computes base and byte offset of a[i].
func (c *Front) element(ctx context.Context, s *funContext, e *ast.Index) (base, off ir.Operand, elem *tp.Type, err error) {
	base, err = c.value(ctx, s, e.X)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "index base")
	}

	pt := base.Type()
	if !pt.IsPtr() || pt.Elem.IsVoid() {
		return nil, nil, nil, errors.New("index of non pointer %v", pt)
	}

	elem = pt.Elem

	idx, err := c.value(ctx, s, e.Index)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "index")
	}

	size := int64(elem.Size())

	switch {
	case isConst(idx):
		off = ir.ConstInt{Value: idx.(ir.ConstInt).Value * size, T: s.types.U64}
	case size == 1:
		off = idx
	default:
		off = s.binary(ir.OpMul, idx, ir.ConstInt{Value: size})
	}

	return base, off, elem, nil
}

func (s *funContext) loadAt(base, off ir.Operand, t *tp.Type) *ir.Temp {
	r := s.NewTemp(t)
	s.emit(ir.OpLoad, r, base, off)

	return r
}

// offset adds a byte offset to a pointer and retypes it to point to t.
func (s *funContext) offset(base, off ir.Operand, t *tp.Type) ir.Operand {
	pt := s.types.PtrTo(t)

	if k, ok := off.(ir.ConstInt); ok && k.Value == 0 {
		r := s.NewTemp(pt)
		s.emit(ir.OpMove, nil, r, base)

		return r
	}

	r := s.NewTemp(pt)
	s.emit(ir.OpAdd, r, base, coerce(off, s.types.U64))

	return r
}

// call lowers a call by name. Unknown callees are declared as external
// functions returning int.
func (c *Front) call(ctx context.Context, s *funContext, e *ast.Call) (ir.Operand, error) {
	f, ok := s.funcByName(e.Name)
	if !ok {
		f = &ir.Func{Name: e.Name, Ret: s.types.Int, External: true}

		err := s.AddFunc(f)
		if err != nil {
			return nil, err
		}

		tlog.SpanFromContext(ctx).Printw("implicit external", "name", e.Name, "ret", f.Ret)
	}

	return c.emitCall(ctx, s, f, e.Args)
}

func (c *Front) foreign(ctx context.Context, s *funContext, e *ast.Foreign) (ir.Operand, error) {
	ret, err := s.typ(e.Ret, s.ns)
	if err != nil {
		return nil, errors.Wrap(err, "foreign %v", e.Name)
	}

	f, ok := s.Module.Func(e.Name)
	if !ok {
		f = &ir.Func{Name: e.Name, Ret: ret, External: true}

		err = s.AddFunc(f)
		if err != nil {
			return nil, err
		}
	}

	r, err := c.emitCall(ctx, s, &ir.Func{Name: f.Name, Ret: ret, Params: f.Params}, e.Args)
	if err != nil {
		return nil, errors.Wrap(err, "foreign %v", e.Name)
	}

	return r, nil
}

func (c *Front) emitCall(ctx context.Context, s *funContext, f *ir.Func, args []ast.Expr) (ir.Operand, error) {
	ops := make([]ir.Operand, 0, len(args)+1)
	ops = append(ops, ir.Symbol{Name: f.Name})

	for i, a := range args {
		x, err := c.value(ctx, s, a)
		if err != nil {
			return nil, errors.Wrap(err, "call %v: arg %d", f.Name, i)
		}

		if i < len(f.Params) {
			x = coerce(x, f.Params[i].T)
		}

		ops = append(ops, x)
	}

	if len(f.Params) != 0 && len(f.Params) != len(args) {
		return nil, errors.New("call %v: %d args, want %d", f.Name, len(args), len(f.Params))
	}

	if f.Ret.IsVoid() {
		s.emit(ir.OpCall, nil, ops...)
		return nil, nil
	}

	r := s.NewTemp(f.Ret)
	s.emit(ir.OpCall, r, ops...)

	return r, nil
}

func (c *Front) syscall(ctx context.Context, s *funContext, e *ast.Syscall) (ir.Operand, error) {
	num, err := c.value(ctx, s, e.Num)
	if err != nil {
		return nil, errors.Wrap(err, "syscall number")
	}

	ops := []ir.Operand{coerce(num, s.types.Long)}

	for i, a := range e.Args {
		x, err := c.value(ctx, s, a)
		if err != nil {
			return nil, errors.Wrap(err, "syscall arg %d", i)
		}

		ops = append(ops, coerce(x, s.types.Long))
	}

	r := s.NewTemp(s.types.Long)
	s.emit(ir.OpSyscall, r, ops...)

	return r, nil
}

func (c *Front) cast(ctx context.Context, s *funContext, e *ast.Cast) (ir.Operand, error) {
	t, err := s.typ(e.Type, s.ns)
	if err != nil {
		return nil, errors.Wrap(err, "cast")
	}

	err = s.checkValueType(t)
	if err != nil {
		return nil, errors.Wrap(err, "cast")
	}

	x, err := c.value(ctx, s, e.X)
	if err != nil {
		return nil, errors.Wrap(err, "cast")
	}

	r := s.NewTemp(t)
	s.emit(ir.OpMove, nil, r, coerce(x, t))

	return r, nil
}

func (c *Front) assign(ctx context.Context, s *funContext, e *ast.Assign) (ir.Operand, error) {
	switch t := e.Target.(type) {
	case *ast.Ident:
		v, err := c.value(ctx, s, e.Value)
		if err != nil {
			return nil, errors.Wrap(err, "assign %v", t.Name)
		}

		return c.assignName(ctx, s, t.Name, v)
	case *ast.Field:
		base, off, ft, err := c.field(ctx, s, t)
		if err != nil {
			return nil, err
		}

		return c.store(ctx, s, base, off, ft, e.Value)
	case *ast.Index:
		base, off, elem, err := c.element(ctx, s, t)
		if err != nil {
			return nil, err
		}

		return c.store(ctx, s, base, off, elem, e.Value)
	default:
		return nil, errors.New("can't assign to %T", e.Target)
	}
}

func (c *Front) store(ctx context.Context, s *funContext, base, off ir.Operand, t *tp.Type, val ast.Expr) (ir.Operand, error) {
	v, err := c.value(ctx, s, val)
	if err != nil {
		return nil, errors.Wrap(err, "assign")
	}

	v = s.convert(v, t)
	s.emit(ir.OpStore, nil, base, off, v)

	return v, nil
}

func isConst(x ir.Operand) bool {
	_, ok := x.(ir.ConstInt)
	return ok
}
