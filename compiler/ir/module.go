package ir

import (
	"strconv"

	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/tp"
)

type (
	Struct struct {
		Name   string
		Public bool
		Packed bool
		Fields []tp.Field

		layout *tp.Layout
	}

	Global struct {
		Name string
		Type *tp.Type

		// Init is nil, ConstInt or *ConstStr.
		Init Operand

		External bool
	}

	Module struct {
		Strings []*ConstStr
		Structs []*Struct
		Funcs   []*Func
		Globals []*Global

		strs    map[string]*ConstStr
		structs map[string]*Struct
		funcs   map[string]*Func
		globals map[string]*Global
	}
)

var ErrLayoutPending = errors.New("struct layout is not computed yet")

func NewModule() *Module {
	return &Module{
		strs:    map[string]*ConstStr{},
		structs: map[string]*Struct{},
		funcs:   map[string]*Func{},
		globals: map[string]*Global{},
	}
}

// Intern returns the string constant for s, creating a new label on first use.
func (m *Module) Intern(s string, t *tp.Type) *ConstStr {
	if c, ok := m.strs[s]; ok {
		return c
	}

	c := &ConstStr{
		Value: s,
		Label: "str" + strconv.Itoa(len(m.Strings)),
		T:     t,
	}

	m.strs[s] = c
	m.Strings = append(m.Strings, c)

	return c
}

func (m *Module) StringByLabel(label string) (*ConstStr, bool) {
	for _, c := range m.Strings {
		if c.Label == label {
			return c, true
		}
	}

	return nil, false
}

func (m *Module) AddStruct(s *Struct) error {
	if _, ok := m.structs[s.Name]; ok {
		return errors.New("struct %v redefined", s.Name)
	}

	m.structs[s.Name] = s
	m.Structs = append(m.Structs, s)

	return nil
}

func (m *Module) Struct(name string) (*Struct, bool) {
	s, ok := m.structs[name]
	return s, ok
}

func (m *Module) AddFunc(f *Func) error {
	if _, ok := m.funcs[f.Name]; ok {
		return errors.New("func %v redefined", f.Name)
	}

	m.funcs[f.Name] = f
	m.Funcs = append(m.Funcs, f)

	return nil
}

func (m *Module) Func(name string) (*Func, bool) {
	f, ok := m.funcs[name]
	return f, ok
}

func (m *Module) AddGlobal(g *Global) error {
	if _, ok := m.globals[g.Name]; ok {
		return errors.New("global %v redefined", g.Name)
	}

	m.globals[g.Name] = g
	m.Globals = append(m.Globals, g)

	return nil
}

func (m *Module) Global(name string) (*Global, bool) {
	g, ok := m.globals[name]
	return g, ok
}

func (s *Struct) Layout() (tp.Layout, error) {
	if s.layout == nil {
		return tp.Layout{}, errors.Wrap(ErrLayoutPending, "struct %v", s.Name)
	}

	return *s.layout, nil
}

func (s *Struct) SetLayout(l tp.Layout) {
	s.layout = &l
}

func (s *Struct) Field(name string) (int, tp.Field, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, f, true
		}
	}

	return -1, tp.Field{}, false
}

// FieldOffset returns the byte offset and type of a field.
// It fails before the layout pass.
func (s *Struct) FieldOffset(name string) (int, *tp.Type, error) {
	i, f, ok := s.Field(name)
	if !ok {
		return 0, nil, errors.New("struct %v has no field %v", s.Name, name)
	}

	l, err := s.Layout()
	if err != nil {
		return 0, nil, err
	}

	return l.Offset(i), f.Type, nil
}
