package compiler

import (
	"context"
	"os"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/back"
	"github.com/slowlang/lowc/compiler/config"
	"github.com/slowlang/lowc/compiler/format"
	"github.com/slowlang/lowc/compiler/front"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/session"
)

func CompileFile(ctx context.Context, cfg config.Config, name string) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, cfg, name, text)
}

// Compile turns an AST file into NASM assembly text.
// With cfg.Debug the IR is also written next to the source.
func Compile(ctx context.Context, cfg config.Config, name string, text []byte) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name)
	defer tr.Finish("err", &err)

	s, err := session.New(cfg)
	if err != nil {
		return nil, err
	}

	m, err := Lower(ctx, s, name, text)
	if err != nil {
		return nil, err
	}

	if cfg.Debug {
		err = DumpIR(ctx, cfg.IRPath(name), m)
		if err != nil {
			return nil, errors.Wrap(err, "dump ir")
		}
	}

	lines, err := back.New(s).CompileModule(ctx, m)
	if err != nil {
		return nil, errors.Wrap(err, "back")
	}

	for _, d := range s.Diags {
		tr.Printw("diagnostic", "diag", d.String())
	}

	obj = []byte(strings.Join(lines, "\n"))
	obj = append(obj, '\n')

	return obj, nil
}

// Lower decodes the file and lowers it to IR within the session.
func Lower(ctx context.Context, s *session.Session, name string, text []byte) (m *ir.Module, err error) {
	s.File = name

	f, err := ast.Decode(name, text)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	m, err = front.New(s).Lower(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	return m, nil
}

func DumpIR(ctx context.Context, path string, m *ir.Module) error {
	b, err := format.Format(ctx, nil, m)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, b, 0o644)
	if err != nil {
		return errors.Wrap(err, "write")
	}

	tlog.SpanFromContext(ctx).Printw("ir dumped", "path", path, "size", len(b))

	return nil
}
