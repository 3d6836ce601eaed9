package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/session"
	"github.com/slowlang/lowc/compiler/tp"
)

type (
	Front struct {
		s *session.Session
	}

	modContext struct {
		*ir.Module

		s     *session.Session
		types *tp.Universe

		bodies []pending
	}

	pending struct {
		decl *ast.FuncDecl
		fn   *ir.Func
		ns   string
	}

	funContext struct {
		*modContext
		*ir.Func

		ns string
		b  *ir.Block

		scopes    []map[string]*ir.Local
		nextLabel int
		hidden    int
	}
)

func New(s *session.Session) *Front {
	return &Front{s: s}
}

// Lower turns a file into an IR module: symbol discovery,
// struct layout, then function bodies.
func (c *Front) Lower(ctx context.Context, f *ast.File) (m *ir.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: lower", "file", f.Name, "session", c.s.ID)
	defer tr.Finish("err", &err)

	p := &modContext{
		Module: ir.NewModule(),
		s:      c.s,
		types:  c.s.Types,
	}

	err = c.discoverStructs(ctx, p, f.Stmts, "")
	if err != nil {
		return nil, errors.Wrap(err, "discover structs")
	}

	err = c.discover(ctx, p, f.Stmts, "")
	if err != nil {
		return nil, errors.Wrap(err, "discover")
	}

	err = c.layout(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "layout")
	}

	for _, x := range p.bodies {
		err = c.lowerFunc(ctx, p, x)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", x.fn.Name)
		}
	}

	tr.Printw("lowered", "funcs", len(p.Funcs), "structs", len(p.Structs), "globals", len(p.Globals), "strings", len(p.Strings))

	return p.Module, nil
}

func mangle(ns, name string) string {
	if ns == "" {
		return name
	}

	return ns + "__" + name
}

func (c *Front) discoverStructs(ctx context.Context, p *modContext, stmts []ast.Stmt, ns string) error {
	for _, x := range stmts {
		switch x := x.(type) {
		case *ast.Namespace:
			err := c.discoverStructs(ctx, p, x.Stmts, mangle(ns, x.Name))
			if err != nil {
				return errors.Wrap(err, "namespace %v", x.Name)
			}
		case *ast.StructDecl:
			s := &ir.Struct{
				Name:   mangle(ns, x.Name),
				Public: x.Public,
				Packed: x.Packed,
			}

			err := p.AddStruct(s)
			if err != nil {
				return err
			}

			p.types.Record(s.Name)
		}
	}

	return nil
}

func (c *Front) discover(ctx context.Context, p *modContext, stmts []ast.Stmt, ns string) (err error) {
	for _, x := range stmts {
		switch x := x.(type) {
		case *ast.Namespace:
			err = c.discover(ctx, p, x.Stmts, mangle(ns, x.Name))
			if err != nil {
				return errors.Wrap(err, "namespace %v", x.Name)
			}
		case *ast.StructDecl:
			s, _ := p.Struct(mangle(ns, x.Name))

			for i, fd := range x.Fields {
				t, err := p.typ(fd.Type, ns)
				if err != nil {
					return errors.Wrap(err, "struct %v: field %v", s.Name, fd.Name)
				}

				err = p.checkValueType(t)
				if err != nil {
					return errors.Wrap(err, "struct %v: field %v", s.Name, fd.Name)
				}

				s.Fields = append(s.Fields, tp.Field{
					Name:   fd.Name,
					Type:   t,
					Public: fd.Public,
					Index:  i,
				})
			}
		case *ast.FuncDecl:
			f, err := p.signature(mangle(ns, x.Name), x.Params, x.Ret, ns)
			if err != nil {
				return errors.Wrap(err, "func %v", x.Name)
			}

			f.Public = x.Public
			f.External = x.Body == nil

			err = p.AddFunc(f)
			if err != nil {
				return err
			}

			if x.Body != nil {
				p.bodies = append(p.bodies, pending{decl: x, fn: f, ns: ns})
			}
		case *ast.Extern:
			if x.Var {
				t, err := p.typ(x.Ret, ns)
				if err != nil {
					return errors.Wrap(err, "extern %v", x.Name)
				}

				err = p.AddGlobal(&ir.Global{Name: x.Name, Type: t, External: true})
				if err != nil {
					return err
				}

				continue
			}

			f, err := p.signature(x.Name, x.Params, x.Ret, ns)
			if err != nil {
				return errors.Wrap(err, "extern %v", x.Name)
			}

			f.External = true

			err = p.AddFunc(f)
			if err != nil {
				return err
			}
		case *ast.VarDecl:
			err = p.global(x, ns)
			if err != nil {
				return errors.Wrap(err, "var %v", x.Name)
			}
		default:
			return errors.New("%d:%d: unexpected %T at top level", x.Span().Line, x.Span().Col, x)
		}
	}

	return nil
}

func (p *modContext) signature(name string, params []ast.Param, ret ast.TypeRef, ns string) (f *ir.Func, err error) {
	f = &ir.Func{Name: name}

	f.Ret, err = p.typ(ret, ns)
	if err != nil {
		return nil, errors.Wrap(err, "return type")
	}

	for _, a := range params {
		t, err := p.typ(a.Type, ns)
		if err != nil {
			return nil, errors.Wrap(err, "param %v", a.Name)
		}

		err = p.checkValueType(t)
		if err != nil {
			return nil, errors.Wrap(err, "param %v", a.Name)
		}

		f.NewParam(a.Name, t)
	}

	return f, nil
}

func (p *modContext) global(x *ast.VarDecl, ns string) (err error) {
	g := &ir.Global{Name: mangle(ns, x.Name)}

	if !x.Type.IsZero() {
		g.Type, err = p.typ(x.Type, ns)
		if err != nil {
			return err
		}
	}

	switch v := x.Init.(type) {
	case nil:
	case *ast.Int:
		g.Init = ir.ConstInt{Value: v.Value, T: g.Type}
	case *ast.Unary:
		n, ok := v.X.(*ast.Int)
		if v.Op != "-" || !ok {
			return errors.New("initializer must be constant")
		}

		g.Init = ir.ConstInt{Value: -n.Value, T: g.Type}
	case *ast.Str:
		g.Init = p.Intern(v.Value, p.types.BytePtr)
	default:
		return errors.New("initializer must be constant")
	}

	if g.Type == nil {
		switch g.Init.(type) {
		case *ir.ConstStr:
			g.Type = p.types.BytePtr
		default:
			g.Type = p.types.Int
		}
	}

	if c, ok := g.Init.(ir.ConstInt); ok {
		c.T = g.Type
		g.Init = c
	}

	err = p.checkValueType(g.Type)
	if err != nil {
		return err
	}

	return p.AddGlobal(g)
}

// layout computes struct layouts so that by-value fields are laid out first.
func (c *Front) layout(ctx context.Context, p *modContext) error {
	const (
		todo = iota
		inProgress
		done
	)

	state := map[string]int{}

	var visit func(s *ir.Struct) error

	visit = func(s *ir.Struct) error {
		switch state[s.Name] {
		case done:
			return nil
		case inProgress:
			return errors.New("struct %v: recursive layout", s.Name)
		}

		state[s.Name] = inProgress

		for _, f := range s.Fields {
			if !f.Type.IsRecord() {
				continue
			}

			dep, ok := p.Struct(f.Type.Name)
			if !ok {
				return errors.New("struct %v: field %v: unknown struct %v", s.Name, f.Name, f.Type.Name)
			}

			err := visit(dep)
			if err != nil {
				return errors.Wrap(err, "struct %v", s.Name)
			}
		}

		l, err := tp.ComputeLayout(s.Fields, s.Packed)
		if err != nil {
			return errors.Wrap(err, "struct %v", s.Name)
		}

		s.SetLayout(l)
		p.types.SetLayout(s.Name, l)

		state[s.Name] = done

		tlog.V("layout").Printw("struct layout", "name", s.Name, "size", l.Size, "align", l.Align, "offsets", l.Offsets)

		return nil
	}

	for _, s := range p.Structs {
		err := visit(s)
		if err != nil {
			return err
		}
	}

	return nil
}
