package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/tp"
)

func TestInternDedup(t *testing.T) {
	u := tp.NewUniverse(64, false)
	m := NewModule()

	a := m.Intern("hello", u.String)
	b := m.Intern("world", u.String)
	c := m.Intern("hello", u.String)

	assert.Same(t, a, c)
	assert.Equal(t, "str0", a.Label)
	assert.Equal(t, "str1", b.Label)
	assert.Len(t, m.Strings, 2)

	x, ok := m.StringByLabel("str1")
	assert.True(t, ok)
	assert.Same(t, b, x)
}

func TestFuncFactories(t *testing.T) {
	u := tp.NewUniverse(64, false)
	f := &Func{Name: "f", Ret: u.Int}

	p := f.NewParam("a", u.Int)
	l := f.NewLocal("x", u.U64)
	t0 := f.NewTemp(u.Int)
	t1 := f.NewTemp(u.Bool)

	assert.True(t, p.Param)
	assert.Equal(t, []*Local{p}, f.Params)
	assert.Equal(t, []*Local{p, l}, f.Locals)
	assert.Equal(t, 0, t0.ID)
	assert.Equal(t, 1, t1.ID)

	b := f.NewBlock(BlockLabel(0))
	b.Append(OpAdd, t0, p, ConstInt{Value: 1, T: u.Int})
	assert.False(t, b.Terminated())

	b.Append(OpRet, nil, t0)
	assert.True(t, b.Terminated())
	assert.Equal(t, 0, f.BlockIndex(BlockLabel(0)))
	assert.Equal(t, -1, f.BlockIndex(BlockLabel(7)))
}

func TestInstrDefUse(t *testing.T) {
	u := tp.NewUniverse(64, false)
	f := &Func{Name: "f"}

	x := f.NewLocal("x", u.Int)
	t0 := f.NewTemp(u.Int)
	t1 := f.NewTemp(u.Int)

	mv := &Instr{Op: OpMove, Args: []Operand{t0, x}}
	assert.Same(t, t0, mv.Def())
	assert.Equal(t, []Operand{x}, mv.Uses())

	st := &Instr{Op: OpMove, Args: []Operand{x, t0}}
	assert.Nil(t, st.Def())

	add := &Instr{Op: OpAdd, Result: t1, Args: []Operand{t0, ConstInt{Value: 2, T: u.Int}}}
	assert.Same(t, t1, add.Def())
	assert.Equal(t, "t1:int = add t0, 2", add.String())

	cj := &Instr{Op: OpCJump, Args: []Operand{t1, BlockLabel(3), ConstInt{Value: 0, T: u.Bool}}}
	l, ok := cj.Target()
	assert.True(t, ok)
	assert.Equal(t, ".L3", l.Name)
	assert.Equal(t, "cjump t1, .L3, 0", cj.String())
}

func TestOps(t *testing.T) {
	for op := OpMove; op < opCount; op++ {
		assert.NotEmpty(t, op.String())
		assert.True(t, op.Valid())
	}

	assert.Equal(t, "mult", OpMul.String())
	assert.False(t, Op(100).Valid())

	op, ok := BinaryOp("<=")
	assert.True(t, ok)
	assert.Equal(t, OpLeq, op)
	assert.True(t, op.IsCompare())
	assert.False(t, OpAdd.IsCompare())

	_, ok = BinaryOp("%")
	assert.False(t, ok)
}

func TestStructLayoutPending(t *testing.T) {
	u := tp.NewUniverse(64, false)

	s := &Struct{Name: "Point", Fields: []tp.Field{
		{Name: "x", Type: u.Int},
		{Name: "y", Type: u.Int, Index: 1},
	}}

	_, err := s.Layout()
	assert.True(t, errors.Is(err, ErrLayoutPending))

	_, _, err = s.FieldOffset("y")
	assert.True(t, errors.Is(err, ErrLayoutPending))

	l, err := tp.ComputeLayout(s.Fields, s.Packed)
	require.NoError(t, err)

	s.SetLayout(l)

	off, ft, err := s.FieldOffset("y")
	require.NoError(t, err)
	assert.Equal(t, 4, off)
	assert.Same(t, u.Int, ft)

	_, _, err = s.FieldOffset("z")
	assert.Error(t, err)
}

func TestModuleTables(t *testing.T) {
	m := NewModule()

	require.NoError(t, m.AddFunc(&Func{Name: "f"}))
	assert.Error(t, m.AddFunc(&Func{Name: "f"}))

	require.NoError(t, m.AddStruct(&Struct{Name: "S"}))
	assert.Error(t, m.AddStruct(&Struct{Name: "S"}))

	require.NoError(t, m.AddGlobal(&Global{Name: "g"}))
	assert.Error(t, m.AddGlobal(&Global{Name: "g"}))

	_, ok := m.Func("f")
	assert.True(t, ok)
	_, ok = m.Func("nope")
	assert.False(t, ok)
}
