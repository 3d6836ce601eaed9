package front

import (
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/tp"
)

func (c *Front) lowerFunc(ctx context.Context, p *modContext, x pending) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: lower func", "name", x.fn.Name, "params", len(x.fn.Params), "ret", x.fn.Ret)
	defer tr.Finish("err", &err)

	s := &funContext{
		modContext: p,
		Func:       x.fn,
		ns:         x.ns,
	}

	s.push()

	for _, a := range s.Params {
		s.define(a.Name, a)
	}

	s.open(s.label())

	_, err = c.block(ctx, s, x.decl.Body)
	if err != nil {
		return errors.Wrap(err, "body")
	}

	if !s.b.Terminated() {
		p.s.Warn(ctx, x.decl.Base, "function %v did not return", s.Name)

		if s.Ret.IsVoid() {
			s.emit(ir.OpRet, nil)
		} else {
			s.emit(ir.OpRet, nil, ir.ConstInt{Value: 0, T: s.Ret})
		}
	}

	if tr.If("dump_ir") {
		for _, b := range s.Blocks {
			for _, in := range b.Instrs {
				tr.Printw("instr", "block", b.Label, "instr", in.String())
			}
		}
	}

	return nil
}

// block lowers statements in a new scope and reports whether control
// can't reach the end of it.
func (c *Front) block(ctx context.Context, s *funContext, b *ast.Block) (term bool, err error) {
	if b == nil {
		return false, nil
	}

	s.push()
	defer s.pop()

	for _, x := range b.Stmts {
		if s.b.Terminated() {
			s.open(s.label())
		}

		term, err = c.stmt(ctx, s, x)
		if err != nil {
			sp := x.Span()
			return false, errors.Wrap(err, "%d:%d", sp.Line, sp.Col)
		}
	}

	return term || s.b.Terminated(), nil
}

func (c *Front) stmt(ctx context.Context, s *funContext, x ast.Stmt) (term bool, err error) {
	switch x := x.(type) {
	case *ast.Block:
		return c.block(ctx, s, x)
	case *ast.VarDecl:
		return false, c.varDecl(ctx, s, x)
	case *ast.Reassign:
		return false, c.reassign(ctx, s, x)
	case *ast.If:
		return c.lowerIf(ctx, s, x)
	case *ast.While:
		return c.lowerWhile(ctx, s, x)
	case *ast.For:
		return c.lowerFor(ctx, s, x)
	case *ast.CallStmt:
		_, err = c.call(ctx, s, x.Call)
		return false, err
	case *ast.ExprStmt:
		_, err = c.expr(ctx, s, x.X)
		return false, err
	case *ast.Return:
		return true, c.ret(ctx, s, x)
	default:
		return false, errors.New("unexpected %T in function body", x)
	}
}

func (c *Front) varDecl(ctx context.Context, s *funContext, x *ast.VarDecl) (err error) {
	var t *tp.Type

	if !x.Type.IsZero() {
		t, err = s.typ(x.Type, s.ns)
		if err != nil {
			return errors.Wrap(err, "var %v", x.Name)
		}
	}

	var v ir.Operand

	if x.Init != nil {
		v, err = c.value(ctx, s, x.Init)
		if err != nil {
			return errors.Wrap(err, "var %v", x.Name)
		}

		if t == nil {
			t = v.Type()
		}
	}

	if t == nil {
		t = s.types.Int
	}

	err = s.checkValueType(t)
	if err != nil {
		return errors.Wrap(err, "var %v", x.Name)
	}

	l := s.NewLocal(x.Name, t)
	s.define(x.Name, l)

	if v != nil {
		s.emit(ir.OpMove, nil, l, coerce(v, t))
	}

	return nil
}

func (c *Front) reassign(ctx context.Context, s *funContext, x *ast.Reassign) (err error) {
	v, err := c.value(ctx, s, x.Value)
	if err != nil {
		return errors.Wrap(err, "set %v", x.Name)
	}

	if x.Op != "=" && x.Op != "" {
		op, ok := ir.BinaryOp(strings.TrimSuffix(x.Op, "="))
		if !ok || op.IsCompare() {
			return errors.New("set %v: unsupported operator %q", x.Name, x.Op)
		}

		cur, err := c.ident(ctx, s, &ast.Ident{Base: x.Base, Name: x.Name})
		if err != nil {
			return err
		}

		v = s.binary(op, cur, v)
	}

	_, err = c.assignName(ctx, s, x.Name, v)

	return err
}

func (c *Front) assignName(ctx context.Context, s *funContext, name string, v ir.Operand) (ir.Operand, error) {
	if l, ok := s.lookup(name); ok {
		v = coerce(v, l.T)
		s.emit(ir.OpMove, nil, l, v)

		return v, nil
	}

	if g, ok := s.globalByName(name); ok {
		v = s.convert(v, g.Type)
		a := s.NewTemp(s.types.PtrTo(g.Type))
		s.emit(ir.OpAddrOf, a, ir.Symbol{Name: g.Name})
		s.emit(ir.OpStore, nil, a, ir.ConstInt{Value: 0, T: s.types.U64}, v)

		return v, nil
	}

	return nil, errors.New("undefined: %v", name)
}

func (c *Front) ret(ctx context.Context, s *funContext, x *ast.Return) error {
	if x.Value == nil {
		if !s.Ret.IsVoid() {
			return errors.New("missing return value")
		}

		s.emit(ir.OpRet, nil)

		return nil
	}

	if s.Ret.IsVoid() {
		return errors.New("return value in void function")
	}

	v, err := c.value(ctx, s, x.Value)
	if err != nil {
		return errors.Wrap(err, "return")
	}

	s.emit(ir.OpRet, nil, coerce(v, s.Ret))

	return nil
}

func (c *Front) lowerIf(ctx context.Context, s *funContext, x *ast.If) (term bool, err error) {
	end := s.label()
	reachEnd := false

	arms := append([]ast.ElseIf{{Cond: x.Cond, Then: x.Then}}, x.Elifs...)

	for i, arm := range arms {
		next := end
		if i+1 < len(arms) || x.Else != nil {
			next = s.label()
		}

		cond, err := c.value(ctx, s, arm.Cond)
		if err != nil {
			return false, errors.Wrap(err, "condition")
		}

		s.emit(ir.OpCJump, nil, cond, next, ir.ConstInt{Value: 0, T: s.types.Bool})

		s.open(s.label())

		t, err := c.block(ctx, s, arm.Then)
		if err != nil {
			return false, err
		}

		if !t {
			s.emit(ir.OpJump, nil, end)
			reachEnd = true
		}

		if next != end {
			s.open(next)
		}
	}

	if x.Else != nil {
		t, err := c.block(ctx, s, x.Else)
		if err != nil {
			return false, err
		}

		reachEnd = reachEnd || !t
	} else {
		reachEnd = true
	}

	if !reachEnd {
		return true, nil
	}

	s.open(end)

	return false, nil
}

func (c *Front) lowerWhile(ctx context.Context, s *funContext, x *ast.While) (term bool, err error) {
	head := s.label()
	body := s.label()
	end := s.label()

	s.open(head)

	cond, err := c.value(ctx, s, x.Cond)
	if err != nil {
		return false, errors.Wrap(err, "condition")
	}

	s.emit(ir.OpCJump, nil, cond, end, ir.ConstInt{Value: 0, T: s.types.Bool})

	s.open(body)

	t, err := c.block(ctx, s, x.Body)
	if err != nil {
		return false, err
	}

	if !t {
		s.emit(ir.OpJump, nil, head)
	}

	s.open(end)

	return false, nil
}

// lowerFor lowers a counted loop over [start, end). A negative constant
// step counts down and compares with >.
func (c *Front) lowerFor(ctx context.Context, s *funContext, x *ast.For) (term bool, err error) {
	start, err := c.value(ctx, s, x.Start)
	if err != nil {
		return false, errors.Wrap(err, "start")
	}

	t := start.Type()
	if _, ok := start.(ir.ConstInt); ok {
		t = s.types.Int
	}

	s.push()
	defer s.pop()

	i := s.NewLocal(x.Var, t)
	s.define(x.Var, i)

	s.emit(ir.OpMove, nil, i, coerce(start, t))

	limit, err := c.value(ctx, s, x.End)
	if err != nil {
		return false, errors.Wrap(err, "end")
	}

	if _, ok := limit.(ir.ConstInt); !ok {
		l := s.hiddenLocal("end", t)
		s.emit(ir.OpMove, nil, l, limit)
		limit = l
	}

	var step ir.Operand = ir.ConstInt{Value: 1, T: t}

	if x.Step != nil {
		step, err = c.value(ctx, s, x.Step)
		if err != nil {
			return false, errors.Wrap(err, "step")
		}

		if _, ok := step.(ir.ConstInt); !ok {
			l := s.hiddenLocal("step", t)
			s.emit(ir.OpMove, nil, l, step)
			step = l
		}
	}

	cmp := ir.OpLt
	if k, ok := step.(ir.ConstInt); ok && k.Value < 0 {
		cmp = ir.OpGt
	}

	head := s.label()
	body := s.label()
	end := s.label()

	s.open(head)

	cur := s.load(i)
	lim := s.load(limit)
	cond := s.binary(cmp, cur, coerce(lim, t))

	s.emit(ir.OpCJump, nil, cond, end, ir.ConstInt{Value: 0, T: s.types.Bool})

	s.open(body)

	term, err = c.block(ctx, s, x.Body)
	if err != nil {
		return false, err
	}

	if !term {
		cur := s.load(i)
		next := s.binary(ir.OpAdd, cur, coerce(s.load(step), t))
		s.emit(ir.OpMove, nil, i, next)
		s.emit(ir.OpJump, nil, head)
	}

	s.open(end)

	return false, nil
}

func (s *funContext) label() ir.Label {
	l := ir.BlockLabel(s.nextLabel)
	s.nextLabel++

	return l
}

// open starts a new block. A block left without a terminator jumps to the new one.
func (s *funContext) open(l ir.Label) {
	if s.b != nil && !s.b.Terminated() {
		s.emit(ir.OpJump, nil, l)
	}

	s.b = s.NewBlock(l)
}

func (s *funContext) emit(op ir.Op, res *ir.Temp, args ...ir.Operand) *ir.Instr {
	return s.b.Append(op, res, args...)
}

func (s *funContext) push() {
	s.scopes = append(s.scopes, map[string]*ir.Local{})
}

func (s *funContext) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *funContext) define(name string, l *ir.Local) {
	s.scopes[len(s.scopes)-1][name] = l
}

func (s *funContext) lookup(name string) (*ir.Local, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if l, ok := s.scopes[i][name]; ok {
			return l, true
		}
	}

	return nil, false
}

func (s *funContext) globalByName(name string) (*ir.Global, bool) {
	if s.ns != "" {
		if g, ok := s.Global(mangle(s.ns, name)); ok {
			return g, true
		}
	}

	return s.Global(name)
}

func (s *funContext) funcByName(name string) (*ir.Func, bool) {
	if s.ns != "" {
		if f, ok := s.Module.Func(mangle(s.ns, name)); ok {
			return f, true
		}
	}

	return s.Module.Func(name)
}

func (s *funContext) hiddenLocal(what string, t *tp.Type) *ir.Local {
	s.hidden++

	return s.NewLocal("."+what+strconv.Itoa(s.hidden), t)
}

// load reads a local into a fresh temp. Other operands are returned as is.
func (s *funContext) load(x ir.Operand) ir.Operand {
	l, ok := x.(*ir.Local)
	if !ok {
		return x
	}

	t := s.NewTemp(l.T)
	s.emit(ir.OpMove, nil, t, l)

	return t
}

// binary emits a binary instruction coercing integer literals to the other operand type.
func (s *funContext) binary(op ir.Op, l, r ir.Operand) *ir.Temp {
	_, lc := l.(ir.ConstInt)
	_, rc := r.(ir.ConstInt)

	switch {
	case lc && !rc:
		l = coerce(l, r.Type())
	case rc && !lc:
		r = coerce(r, l.Type())
	}

	t := l.Type()
	if r.Type().IsPtr() && !t.IsPtr() {
		t = r.Type()
	}

	if op.IsCompare() {
		t = s.types.Bool
	}

	res := s.NewTemp(t)
	s.emit(op, res, l, r)

	return res
}
