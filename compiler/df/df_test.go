package df

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/set"
	"github.com/slowlang/lowc/compiler/tp"
)

func TestSolveLinearChain(t *testing.T) {
	bs := []Block{
		{Def: set.MakeBits(1), Succ: []int{1}},
		{Use: set.MakeBits(1), Def: set.MakeBits(2), Succ: []int{2}},
		{Use: set.MakeBits(2, 3)},
	}

	visits := Solve(bs)
	assert.Greater(t, visits, 0)
	assert.LessOrEqual(t, visits, 3*len(bs))

	assert.Equal(t, []int{3}, bs[0].LiveIn.Slice())
	assert.Equal(t, []int{1, 3}, bs[0].LiveOut.Slice())
	assert.Equal(t, []int{1, 3}, bs[1].LiveIn.Slice())
	assert.Equal(t, []int{2, 3}, bs[1].LiveOut.Slice())
	assert.Equal(t, []int{2, 3}, bs[2].LiveIn.Slice())
	assert.Empty(t, bs[2].LiveOut.Slice())

	assert.Equal(t, []int{0}, bs[1].Pred)
	assert.Equal(t, []int{1}, bs[2].Pred)
}

func loopFunc() *ir.Func {
	u := tp.NewUniverse(64, false)
	f := &ir.Func{Name: "loop", Ret: u.Int}

	n := f.NewParam("n", u.Int)
	t0 := f.NewTemp(u.Int)
	t1 := f.NewTemp(u.Bool)
	t2 := f.NewTemp(u.Int)

	b0 := f.NewBlock(ir.BlockLabel(0))
	b1 := f.NewBlock(ir.BlockLabel(1))
	b2 := f.NewBlock(ir.BlockLabel(2))
	b3 := f.NewBlock(ir.BlockLabel(3))

	b0.Append(ir.OpMove, nil, t0, n)
	b0.Append(ir.OpJump, nil, b1.Label)

	b1.Append(ir.OpLt, t1, t0, ir.ConstInt{Value: 10, T: u.Int})
	b1.Append(ir.OpCJump, nil, t1, b3.Label, ir.ConstInt{Value: 0, T: u.Bool})

	b2.Append(ir.OpAdd, t2, t0, ir.ConstInt{Value: 1, T: u.Int})
	b2.Append(ir.OpMove, nil, t0, t2)
	b2.Append(ir.OpJump, nil, b1.Label)

	b3.Append(ir.OpRet, nil, t0)

	return f
}

func TestSuccessors(t *testing.T) {
	succ, err := Successors(loopFunc())
	require.NoError(t, err)

	assert.Equal(t, [][]int{{1}, {3, 2}, {1}, nil}, succ)
}

func TestSuccessorsBadLabel(t *testing.T) {
	f := &ir.Func{Name: "bad"}
	f.NewBlock(ir.BlockLabel(0)).Append(ir.OpJump, nil, ir.BlockLabel(9))

	_, err := Successors(f)
	assert.Error(t, err)
}

func TestUseDef(t *testing.T) {
	f := loopFunc()

	use, def := UseDef(f.Blocks[2])
	assert.Equal(t, []int{0}, use.Slice())
	assert.Equal(t, []int{0, 2}, def.Slice())
}

func TestAnalyzeLoop(t *testing.T) {
	l, err := Analyze(loopFunc())
	require.NoError(t, err)

	assert.Empty(t, l.Blocks[0].LiveIn.Slice())
	assert.Equal(t, []int{0}, l.Blocks[0].LiveOut.Slice())
	assert.Equal(t, []int{0}, l.Blocks[1].LiveIn.Slice())
	assert.Equal(t, []int{0}, l.Blocks[1].LiveOut.Slice())
	assert.Equal(t, []int{0}, l.Blocks[2].LiveIn.Slice())
	assert.Equal(t, []int{0}, l.LiveOut(2).Slice())
	assert.Equal(t, []int{0}, l.Blocks[3].LiveIn.Slice())
	assert.Empty(t, l.Blocks[3].LiveOut.Slice())
}
