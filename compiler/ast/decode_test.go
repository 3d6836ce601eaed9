package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFunc(t *testing.T) {
	f, err := Decode("a.yaml", []byte(`
- func: add
  public: true
  params:
    - {name: a, type: int}
    - {name: p, type: byte**}
  ret: long
  body:
    - return: {op: "+", l: a, r: 1}
`))
	require.NoError(t, err)
	require.Len(t, f.Stmts, 1)

	fd, ok := f.Stmts[0].(*FuncDecl)
	require.True(t, ok)

	assert.Equal(t, "add", fd.Name)
	assert.True(t, fd.Public)
	assert.Equal(t, []Param{
		{Name: "a", Type: TypeRef{Name: "int"}},
		{Name: "p", Type: TypeRef{Name: "byte", Ptr: 2}},
	}, fd.Params)
	assert.Equal(t, TypeRef{Name: "long"}, fd.Ret)

	require.NotNil(t, fd.Body)
	require.Len(t, fd.Body.Stmts, 1)

	r, ok := fd.Body.Stmts[0].(*Return)
	require.True(t, ok)

	b, ok := r.Value.(*Binary)
	require.True(t, ok)
	assert.Equal(t, "+", b.Op)
	assert.Equal(t, &Ident{Base: b.Left.Span(), Name: "a"}, b.Left)
	assert.Equal(t, int64(1), b.Right.(*Int).Value)
}

func TestDecodeExtern(t *testing.T) {
	f, err := Decode("a.yaml", []byte(`
- extern: puts
  params: [{name: s, type: byte*}]
  ret: int
- extern: errno
  var: true
  type: int
- func: noop
`))
	require.NoError(t, err)
	require.Len(t, f.Stmts, 3)

	e := f.Stmts[0].(*Extern)
	assert.Equal(t, "puts", e.Name)
	assert.False(t, e.Var)
	assert.Equal(t, TypeRef{Name: "int"}, e.Ret)

	v := f.Stmts[1].(*Extern)
	assert.True(t, v.Var)
	assert.Equal(t, TypeRef{Name: "int"}, v.Ret)

	fd := f.Stmts[2].(*FuncDecl)
	assert.Nil(t, fd.Body)
	assert.True(t, fd.Ret.IsZero())
}

func TestDecodeStatements(t *testing.T) {
	f, err := Decode("a.yaml", []byte(`
- struct: P
  packed: true
  fields:
    - {name: x, type: byte}
- namespace: m
  body:
    - var: g
      init: -1
- func: main
  body:
    - set: n
      op: "+="
      value: 2
    - if: c
      then: [{return: 1}]
      elif:
        - cond: d
          then: [{return: 2}]
      else: [{return: 3}]
    - while: true
      body: []
    - for: i
      from: 0
      to: 10
      body: [{call: f, args: [i, {str: "s"}]}]
    - expr: {assign: {index: a, at: 1}, value: {cast: long, x: {syscall: 60, args: [0]}}}
    - return:
`))
	require.NoError(t, err)
	require.Len(t, f.Stmts, 3)

	st := f.Stmts[0].(*StructDecl)
	assert.True(t, st.Packed)
	require.Len(t, st.Fields, 1)
	assert.Equal(t, "x", st.Fields[0].Name)

	ns := f.Stmts[1].(*Namespace)
	assert.Equal(t, "m", ns.Name)
	assert.Equal(t, int64(-1), ns.Stmts[0].(*VarDecl).Init.(*Int).Value)

	body := f.Stmts[2].(*FuncDecl).Body.Stmts
	require.Len(t, body, 6)

	set := body[0].(*Reassign)
	assert.Equal(t, "+=", set.Op)

	x := body[1].(*If)
	assert.Len(t, x.Elifs, 1)
	assert.NotNil(t, x.Else)

	w := body[2].(*While)
	assert.Equal(t, int64(1), w.Cond.(*Int).Value)

	fr := body[3].(*For)
	assert.Equal(t, "i", fr.Var)
	assert.Nil(t, fr.Step)

	call := fr.Body.Stmts[0].(*CallStmt).Call
	assert.Equal(t, "f", call.Name)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "s", call.Args[1].(*Str).Value)

	as := body[4].(*ExprStmt).X.(*Assign)
	_, ok := as.Target.(*Index)
	assert.True(t, ok)

	c := as.Value.(*Cast)
	assert.Equal(t, TypeRef{Name: "long"}, c.Type)
	assert.Len(t, c.X.(*Syscall).Args, 1)

	assert.Nil(t, body[5].(*Return).Value)
}

func TestDecodeErrors(t *testing.T) {
	for _, src := range []string{
		`{func: main}`,
		`- [1, 2]`,
		`- unknown: x`,
		`- return: {weird: 1}`,
		`- return: 1.5`,
	} {
		_, err := Decode("bad.yaml", []byte(src))
		assert.Error(t, err, "%s", src)
	}
}

func TestDecodeEmpty(t *testing.T) {
	f, err := Decode("e.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, f.Stmts)
}
