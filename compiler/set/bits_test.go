package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	s := MakeBits[int](1, 3, 64, 130)

	assert.True(t, s.IsSet(1))
	assert.True(t, s.IsSet(130))
	assert.False(t, s.IsSet(2))
	assert.False(t, s.IsSet(1000))
	assert.Equal(t, 4, s.Size())
	assert.Equal(t, []int{1, 3, 64, 130}, s.Slice())

	s.Clear(64)
	assert.Equal(t, []int{1, 3, 130}, s.Slice())
}

func TestBitsMergeSubstract(t *testing.T) {
	a := MakeBits[int](1, 2)
	b := MakeBits[int](2, 100)

	c := a.Copy()
	assert.True(t, c.Merge(b))
	assert.False(t, c.Merge(b))
	assert.Equal(t, []int{1, 2, 100}, c.Slice())
	assert.Equal(t, []int{1, 2}, a.Slice(), "copy must not alias")

	c.Substract(a)
	assert.Equal(t, []int{100}, c.Slice())

	d := MakeBits[int](1, 2, 100)
	d.Intersect(b)
	assert.Equal(t, []int{2, 100}, d.Slice())
}

func TestBitsEqual(t *testing.T) {
	a := MakeBits[int](5)
	b := MakeBits[int](5, 200)

	assert.False(t, a.Equal(b))

	b.Clear(200)
	assert.True(t, a.Equal(b), "trailing zero words are ignored")
	assert.True(t, MakeBits[int]().Equal(Bits[int]{}))
}
