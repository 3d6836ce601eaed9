package tp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"
)

func TestLayoutPoint(t *testing.T) {
	u := NewUniverse(64, false)

	l, err := ComputeLayout([]Field{
		{Name: "x", Type: u.Int},
		{Name: "y", Type: u.Int},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 4}, l.Offsets)
	assert.Equal(t, 8, l.Size)
	assert.Equal(t, 4, l.Align)
}

func TestLayoutPadding(t *testing.T) {
	u := NewUniverse(64, false)

	fields := []Field{
		{Name: "a", Type: u.Byte},
		{Name: "b", Type: u.U64},
		{Name: "c", Type: u.U16},
		{Name: "d", Type: u.Int},
		{Name: "e", Type: u.Bool},
	}

	l, err := ComputeLayout(fields, false)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 8, 16, 20, 24}, l.Offsets)
	assert.Equal(t, 32, l.Size)
	assert.Equal(t, 8, l.Align)

	for i, f := range fields {
		assert.Zero(t, l.Offsets[i]%f.Type.Align, "field %v", f.Name)

		if i > 0 {
			assert.GreaterOrEqual(t, l.Offsets[i], l.Offsets[i-1])
		}
	}

	assert.Zero(t, l.Size%l.Align)
}

func TestLayoutPacked(t *testing.T) {
	u := NewUniverse(64, false)

	fields := []Field{
		{Name: "a", Type: u.Byte},
		{Name: "b", Type: u.U64},
		{Name: "c", Type: u.U16},
		{Name: "d", Type: u.Int},
	}

	l, err := ComputeLayout(fields, true)
	require.NoError(t, err)

	sum := 0
	for i, f := range fields {
		assert.Equal(t, sum, l.Offsets[i], "field %v", f.Name)
		sum += f.Type.Size()
	}

	assert.Equal(t, 15, l.Size)
	assert.Equal(t, 1, l.Align)
}

func TestLayoutEmpty(t *testing.T) {
	l, err := ComputeLayout(nil, false)
	require.NoError(t, err)

	assert.Equal(t, 0, l.Size)
	assert.Equal(t, 1, l.Align)
}

func TestAlignUp(t *testing.T) {
	for _, tc := range []struct {
		off, align, exp int
	}{
		{0, 1, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 8, 8},
		{17, 16, 32},
	} {
		r, err := AlignUp(tc.off, tc.align)
		require.NoError(t, err)
		assert.Equal(t, tc.exp, r, "align_up(%d, %d)", tc.off, tc.align)
	}

	_, err := AlignUp(3, 0)
	assert.True(t, errors.Is(err, ErrBadAlignment))

	_, err = AlignUp(3, -8)
	assert.True(t, errors.Is(err, ErrBadAlignment))
}

func TestLayoutBadField(t *testing.T) {
	_, err := ComputeLayout([]Field{{Name: "x", Type: &Type{Bits: 32}}}, false)
	assert.True(t, errors.Is(err, ErrBadAlignment))
}
