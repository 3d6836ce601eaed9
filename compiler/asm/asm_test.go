package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"
)

var (
	rax = &Reg{ID: 0, Names: [4]string{"al", "ax", "eax", "rax"}}
	rbx = &Reg{ID: 3, Names: [4]string{"bl", "bx", "ebx", "rbx"}}
	rbp = &Reg{ID: 5, Names: [4]string{"bpl", "bp", "ebp", "rbp"}}
	r10 = &Reg{ID: 10, Names: [4]string{"r10b", "r10w", "r10d", "r10"}}
	r11 = &Reg{ID: 11, Names: [4]string{"r11b", "r11w", "r11d", "r11"}}
	rip = &Reg{ID: 16, Names: [4]string{3: "rip"}}
)

func TestOperandStrings(t *testing.T) {
	r, err := RegOf(rbx, 32)
	require.NoError(t, err)
	assert.Equal(t, "ebx", r.String())

	_, err = RegOf(rip, 32)
	assert.True(t, errors.Is(err, ErrRegisterSize))

	_, err = RegOf(rbx, 128)
	assert.True(t, errors.Is(err, ErrRegisterSize))

	assert.Equal(t, "qword [rbp-8]", Mem{Base: rbp, Disp: -8, Bits: 64}.String())
	assert.Equal(t, "dword [rbp+16]", Mem{Base: rbp, Disp: 16, Bits: 32}.String())
	assert.Equal(t, "byte [r10+r11]", Mem{Base: r10, Index: r11, Bits: 8}.String())
	assert.Equal(t, "dword [rel counter]", Mem{Symbol: "counter", PIC: true, Bits: 32}.String())
	assert.Equal(t, "[counter]", Mem{Symbol: "counter"}.String())

	assert.Equal(t, "5", Imm{Value: 5, Bits: 32}.String())
	assert.Equal(t, "qword 5", Imm{Value: 5, Bits: 64, Sized: true}.String())

	assert.Equal(t, "[rel str0]", Ptr{Label: "str0", PIC: true}.String())
	assert.Equal(t, "str0", Ptr{Label: "str0"}.String())
	assert.Equal(t, ".L1", Label{Name: ".L1"}.String())
}

func TestTextTracksRegisters(t *testing.T) {
	var x Text

	x.Ins("mov", Register{R: rbx, Bits: 32}, Imm{Value: 1, Bits: 32})
	x.Ins("mov", Register{R: r10, Bits: 64}, Mem{Base: rbp, Index: r11, Bits: 64})
	x.Label(".L0")
	x.Comment("%d bytes", 8)

	assert.Equal(t, []string{
		"\tmov ebx, 1",
		"\tmov r10, qword [rbp+r11]",
		".L0:",
		"\t; 8 bytes",
	}, x.Lines)

	assert.True(t, x.Touched(rbx))
	assert.True(t, x.Touched(r11))
	assert.True(t, x.Touched(rbp))
	assert.False(t, x.Touched(rax))
}

func TestMove(t *testing.T) {
	var x Text

	ebx := Register{R: rbx, Bits: 32}
	rbx64 := Register{R: rbx, Bits: 64}
	slot := Mem{Base: rbp, Disp: -8, Bits: 32}

	require.NoError(t, x.Move(ebx, Imm{Value: 7, Bits: 32}, true, nil))
	require.NoError(t, x.Move(ebx, Imm{Value: 0, Bits: 32}, true, nil))
	require.NoError(t, x.Move(rbx64, slot, true, nil))
	require.NoError(t, x.Move(rbx64, slot, false, nil))
	require.NoError(t, x.Move(ebx, Mem{Base: rbp, Disp: -1, Bits: 8}, false, nil))
	require.NoError(t, x.Move(slot, ebx, true, nil))
	require.NoError(t, x.Move(slot, Mem{Base: rbp, Disp: -16, Bits: 32}, true, rax))
	require.NoError(t, x.Move(rbx64, Ptr{Label: "str0", PIC: true}, false, nil))
	require.NoError(t, x.Move(ebx, ebx, false, nil))

	assert.Equal(t, []string{
		"\tmov ebx, 7",
		"\txor ebx, ebx",
		"\tmovsxd rbx, dword [rbp-8]",
		"\tmov ebx, dword [rbp-8]",
		"\tmovzx ebx, byte [rbp-1]",
		"\tmov dword [rbp-8], ebx",
		"\tmov eax, dword [rbp-16]",
		"\tmov dword [rbp-8], eax",
		"\tlea rbx, [rel str0]",
	}, x.Lines)

	err := x.Move(slot, Mem{Base: rbp, Disp: -16, Bits: 32}, true, nil)
	assert.Error(t, err)
}

func TestPush(t *testing.T) {
	var x Text

	require.NoError(t, x.Push(Register{R: rbx, Bits: 64}, false, rax))
	require.NoError(t, x.Push(Imm{Value: 3, Bits: 32}, true, rax))
	require.NoError(t, x.Push(Mem{Base: rbp, Disp: -4, Bits: 32}, true, rax))

	assert.Equal(t, []string{
		"\tpush rbx",
		"\tpush qword 3",
		"\tmovsxd rax, dword [rbp-4]",
		"\tpush rax",
	}, x.Lines)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "link", RoleLink.String())
	assert.Equal(t, "div_remainder", RoleDivRemainder.String())
	assert.Equal(t, "role(100)", Role(100).String())
}
