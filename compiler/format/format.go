package format

import (
	"context"
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/ir"
)

// Format appends a human readable dump of an IR module, function or struct.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ir.Module:
		return formatModule(ctx, b, x, d)
	case *ir.Func:
		return formatFunc(ctx, b, x, d)
	case *ir.Struct:
		return formatStruct(ctx, b, x, d)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatModule(ctx context.Context, b []byte, x *ir.Module, d int) (_ []byte, err error) {
	sep := func() {
		if len(b) != 0 {
			b = append(b, '\n')
		}
	}

	for _, s := range x.Structs {
		sep()

		b, err = formatStruct(ctx, b, s, d)
		if err != nil {
			return nil, errors.Wrap(err, "struct %v", s.Name)
		}
	}

	if len(x.Strings) != 0 {
		sep()

		for _, s := range x.Strings {
			b = app(b, d, "%s = %s\n", s.Label, strconv.Quote(s.Value))
		}
	}

	if len(x.Globals) != 0 {
		sep()

		for _, g := range x.Globals {
			switch {
			case g.External:
				b = app(b, d, "extern var %s %v\n", g.Name, g.Type)
			case g.Init != nil:
				b = app(b, d, "var %s %v = %v\n", g.Name, g.Type, g.Init)
			default:
				b = app(b, d, "var %s %v\n", g.Name, g.Type)
			}
		}
	}

	for _, f := range x.Funcs {
		sep()

		b, err = formatFunc(ctx, b, f, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func formatStruct(ctx context.Context, b []byte, x *ir.Struct, d int) ([]byte, error) {
	l, err := x.Layout()
	if err != nil {
		return nil, err
	}

	b = app(b, d, "struct %s", x.Name)

	if x.Packed {
		b = append(b, " packed"...)
	}

	b = hfmt.Appendf(b, " size %d align %d\n", l.Size, l.Align)

	for i, f := range x.Fields {
		b = app(b, d+1, "%-4d %s %v\n", l.Offset(i), f.Name, f.Type)
	}

	return b, nil
}

func formatFunc(ctx context.Context, b []byte, x *ir.Func, d int) ([]byte, error) {
	if x.External {
		b = app(b, d, "extern ")
	} else if x.Public {
		b = app(b, d, "public ")
	} else {
		b = app(b, d, "")
	}

	b = hfmt.Appendf(b, "func %s(", x.Name)

	for i, a := range x.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "%v %v", a, a.T)
	}

	b = hfmt.Appendf(b, ") %v\n", x.Ret)

	if x.External {
		return b, nil
	}

	for _, l := range x.Locals {
		if l.Param {
			continue
		}

		b = app(b, d+1, "local %v %v\n", l, l.T)
	}

	for _, bl := range x.Blocks {
		b = app(b, d, "%v:\n", bl.Label)

		for _, in := range bl.Instrs {
			if !in.Op.Valid() {
				return nil, errors.New("block %v: bad opcode %v", bl.Label, in.Op)
			}

			b = app(b, d+1, "%s\n", in.String())
		}
	}

	return b, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
