package back

import (
	"context"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/asm"
	"github.com/slowlang/lowc/compiler/df"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/session"
)

type (
	Compiler struct {
		s *session.Session
	}
)

const endLabel = ".Lend"

func New(s *session.Session) *Compiler {
	return &Compiler{s: s}
}

// CompileModule emits NASM assembly lines for the module:
// read only strings, data, then code.
func (c *Compiler) CompileModule(ctx context.Context, m *ir.Module) (lines []string, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile module", "funcs", len(m.Funcs), "session", c.s.ID)
	defer tr.Finish("err", &err)

	t := &asm.Text{}

	c.rodata(t, m)

	err = c.data(t, m)
	if err != nil {
		return nil, errors.Wrap(err, "data")
	}

	t.Raw("section .text")

	for _, g := range m.Globals {
		if g.External {
			t.Raw("extern %s", g.Name)
		}
	}

	for _, f := range m.Funcs {
		if f.External {
			t.Raw("extern %s", f.Name)
		}
	}

	for _, f := range m.Funcs {
		if !f.External && (f.Public || f.Name == c.s.Config.Entry) {
			t.Raw("global %s", f.Name)
		}
	}

	for _, f := range m.Funcs {
		if f.External {
			continue
		}

		fl, err := c.compileFunc(ctx, m, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}

		t.Lines = append(t.Lines, fl...)
	}

	if tr.If("dump_asm") {
		for i, l := range t.Lines {
			tr.Printw("asm", "i", i, "line", l)
		}
	}

	return t.Lines, nil
}

func (c *Compiler) rodata(t *asm.Text, m *ir.Module) {
	t.Raw("section .rodata")

	var b []byte

	for _, s := range m.Strings {
		b = b[:0]

		for i := 0; i < len(s.Value); i++ {
			b = strconv.AppendUint(b, uint64(s.Value[i]), 10)
			b = append(b, ", "...)
		}

		b = append(b, '0')

		t.Raw("%s: db %s", s.Label, b)

		if c.s.Config.FatStrings {
			t.Raw("%s_len: dq %d", s.Label, len(s.Value))
		}
	}
}

func (c *Compiler) data(t *asm.Text, m *ir.Module) error {
	header := false

	for _, g := range m.Globals {
		if g.External {
			continue
		}

		if !header {
			t.Raw("section .data")
			header = true
		}

		size := g.Type.Size()

		switch x := g.Init.(type) {
		case nil:
			t.Raw("%s: times %d db 0", g.Name, max(1, size))
		case ir.ConstInt:
			d, err := dataDirective(size)
			if err != nil {
				return errors.Wrap(err, "global %v", g.Name)
			}

			t.Raw("%s: %s %d", g.Name, d, x.Value)
		case *ir.ConstStr:
			d, err := dataDirective(size)
			if err != nil {
				return errors.Wrap(err, "global %v", g.Name)
			}

			t.Raw("%s: %s %s", g.Name, d, x.Label)
		default:
			return errors.New("global %v: unsupported initializer %v", g.Name, g.Init)
		}
	}

	return nil
}

func dataDirective(size int) (string, error) {
	switch size {
	case 1:
		return "db", nil
	case 2:
		return "dw", nil
	case 4:
		return "dd", nil
	case 8:
		return "dq", nil
	}

	return "", errors.New("unsupported data size %d", size)
}

// compileFunc emits the function twice. The first run finds the callee saved
// registers the body uses, the second one knows how much they take.
func (c *Compiler) compileFunc(ctx context.Context, m *ir.Module, f *ir.Func) (_ []string, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", f.Name, "blocks", len(f.Blocks), "temps", len(f.Temps))
	defer tr.Finish("err", &err)

	conv := c.s.Conv

	live, err := df.Analyze(f)
	if err != nil {
		return nil, errors.Wrap(err, "liveness")
	}

	tr.V("liveness").Printw("liveness", "iterations", live.Iterations)

	fr := NewFrame(f, conv.Stack().Align)

	dry, err := newFunEmitter(m, f, conv, live, fr)
	if err != nil {
		return nil, err
	}

	err = dry.params()
	if err != nil {
		return nil, errors.Wrap(err, "params")
	}

	err = dry.body(ctx)
	if err != nil {
		return nil, err
	}

	fr.Saved = touchedCalleeSaved(conv, dry.t)

	e, err := newFunEmitter(m, f, conv, live, fr)
	if err != nil {
		return nil, err
	}

	err = e.prologue()
	if err != nil {
		return nil, errors.Wrap(err, "prologue")
	}

	err = e.params()
	if err != nil {
		return nil, errors.Wrap(err, "params")
	}

	err = e.body(ctx)
	if err != nil {
		return nil, err
	}

	err = e.epilogue(f.Name == c.s.Config.Entry)
	if err != nil {
		return nil, errors.Wrap(err, "epilogue")
	}

	tr.Printw("frame", "slots", fr.Size, "total", fr.Total(), "reserve", fr.Reserve(), "saved", fr.Saved, "lines", e.t.Len())

	return e.t.Lines, nil
}

func touchedCalleeSaved(conv asm.Convention, t *asm.Text) (r []*asm.Reg) {
	bp, _ := conv.Role(asm.RoleBasePointer)
	sp, _ := conv.Role(asm.RoleStackPointer)

	for _, x := range conv.CalleeSaved() {
		if x == bp || x == sp || !t.Touched(x) {
			continue
		}

		r = append(r, x)
	}

	return r
}

func (e *funEmitter) prologue() error {
	sp, err := e.conv.Role(asm.RoleStackPointer)
	if err != nil {
		return err
	}

	rsp := asm.Register{R: sp, Bits: 64}
	rbp := asm.Register{R: e.bp, Bits: 64}

	e.t.Label(e.f.Name)
	e.t.Ins("push", rbp)
	e.t.Ins("mov", rbp, rsp)

	for _, r := range e.fr.Saved {
		e.t.Ins("push", asm.Register{R: r, Bits: 64})
	}

	if n := e.fr.Reserve(); n != 0 {
		e.t.Ins("sub", rsp, asm.Imm{Value: int64(n), Bits: 64})
	}

	return nil
}

// params copies arguments from registers and the caller frame to param slots.
func (e *funEmitter) params() error {
	rules := e.conv.ArgRules()

	for j, p := range e.f.Params {
		err := scalar(p.T)
		if err != nil {
			return errors.Wrap(err, "param %v", p.Name)
		}

		d, err := e.operand(p)
		if err != nil {
			return err
		}

		var src asm.Operand

		if j < len(rules) {
			src = asm.Register{R: rules[j].Reg, Bits: 64}
		} else {
			src = asm.Mem{Base: e.bp, Disp: 16 + 8*(j-len(rules)), Bits: 64}
		}

		err = e.t.Move(d, src, signed(p.T), e.ret)
		if err != nil {
			return errors.Wrap(err, "param %v", p.Name)
		}
	}

	return nil
}

func (e *funEmitter) epilogue(entry bool) error {
	sp, err := e.conv.Role(asm.RoleStackPointer)
	if err != nil {
		return err
	}

	rsp := asm.Register{R: sp, Bits: 64}

	e.t.Label(endLabel)

	if n := e.fr.Reserve(); n != 0 {
		e.t.Ins("add", rsp, asm.Imm{Value: int64(n), Bits: 64})
	}

	for i := len(e.fr.Saved) - 1; i >= 0; i-- {
		e.t.Ins("pop", asm.Register{R: e.fr.Saved[i], Bits: 64})
	}

	e.t.Ins("pop", asm.Register{R: e.bp, Bits: 64})

	if entry {
		return e.conv.EmitExit(e.t)
	}

	e.t.Ins("ret")

	return nil
}
