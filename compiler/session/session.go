package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/asm"
	"github.com/slowlang/lowc/compiler/asm/x86"
	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/config"
	"github.com/slowlang/lowc/compiler/tp"
)

type (
	// Session is the state of one compilation run.
	Session struct {
		ID     uuid.UUID
		Config config.Config

		Types *tp.Universe
		Conv  asm.Convention

		File  string
		Diags []Diag
	}

	Diag struct {
		File string
		Span ast.Base
		Msg  string

		// From is where in the compiler the diagnostic was raised.
		From loc.PC
	}
)

func New(cfg config.Config) (*Session, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}

	conv, err := x86.Lookup(cfg.Convention)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:     uuid.New(),
		Config: cfg,
		Types:  tp.NewUniverse(cfg.Bits, cfg.FatStrings),
		Conv:   conv,
	}

	return s, nil
}

// Warn records a non fatal diagnostic and logs it.
func (s *Session) Warn(ctx context.Context, span ast.Base, f string, args ...any) {
	d := Diag{
		File: s.File,
		Span: span,
		Msg:  string(hfmt.Appendf(nil, f, args...)),
		From: loc.Caller(1),
	}

	s.Diags = append(s.Diags, d)

	tlog.SpanFromContext(ctx).Printw("warning", "session", s.ID, "file", d.File, "line", span.Line, "col", span.Col, "msg", d.Msg, "from", d.From)
}

func (d Diag) String() string {
	return string(hfmt.Appendf(nil, "%s:%d:%d: warning: %s", d.File, d.Span.Line, d.Span.Col, d.Msg))
}
