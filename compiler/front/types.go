package front

import (
	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/tp"
)

// typ resolves a type reference. Structs are looked up in the namespace first.
// The zero reference is void.
func (p *modContext) typ(ref ast.TypeRef, ns string) (t *tp.Type, err error) {
	switch {
	case ref.IsZero():
		return p.types.Void, nil
	case ref.Name == "":
		return nil, errors.New("pointer to nothing")
	}

	t, ok := p.types.Named(ref.Name)

	if !ok && ns != "" {
		if s, ok1 := p.Struct(mangle(ns, ref.Name)); ok1 {
			t, ok = p.types.Record(s.Name), true
		}
	}

	if !ok {
		if s, ok1 := p.Struct(ref.Name); ok1 {
			t, ok = p.types.Record(s.Name), true
		}
	}

	if !ok {
		return nil, errors.New("unknown type: %v", ref.Name)
	}

	for i := 0; i < ref.Ptr; i++ {
		t = p.types.PtrTo(t)
	}

	return t, nil
}

// checkValueType rejects types which can't be held in a variable.
func (p *modContext) checkValueType(t *tp.Type) error {
	if p.types.FatStrings && t == p.types.String {
		return errors.New("fat string values are not supported")
	}

	if t.IsVoid() {
		return errors.New("void value")
	}

	return nil
}

// coerce retypes an integer literal to t.
func coerce(x ir.Operand, t *tp.Type) ir.Operand {
	c, ok := x.(ir.ConstInt)
	if !ok || t == nil || t.IsVoid() || t.IsRecord() {
		return x
	}

	c.T = t

	return c
}

// convert makes x of type t. Literals are retyped, other values are moved
// into a temp of type t.
func (s *funContext) convert(x ir.Operand, t *tp.Type) ir.Operand {
	if _, ok := x.(ir.ConstInt); ok || x.Type().Equal(t) {
		return coerce(x, t)
	}

	r := s.NewTemp(t)
	s.emit(ir.OpMove, nil, r, x)

	return r
}
