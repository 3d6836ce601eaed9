package x86

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/asm"
)

type regSet map[*asm.Reg]bool

func (s regSet) InUse(r *asm.Reg) bool { return s[r] }

func TestLookup(t *testing.T) {
	c, err := Lookup("sysv")
	require.NoError(t, err)
	assert.Equal(t, "sysv", c.Name())
	assert.True(t, c.PIC())
	assert.Equal(t, asm.StackPolicy{Align: 16, CallerCleanup: true, RedZone: 128}, c.Stack())

	_, err = Lookup("win64")
	assert.Error(t, err)
}

func TestRoles(t *testing.T) {
	c := SysV{}

	for _, tc := range []struct {
		role asm.Role
		reg  *asm.Reg
	}{
		{asm.RoleStackPointer, RSP},
		{asm.RoleBasePointer, RBP},
		{asm.RoleProgramCounter, RIP},
		{asm.RoleSyscallNumber, RAX},
		{asm.RoleReturn, RAX},
		{asm.RoleReturnHigh, RDX},
		{asm.RoleReturnDouble, XMM0},
		{asm.RoleAddrBase, R10},
		{asm.RoleAddrIndex, R11},
		{asm.RoleDivRemainder, RDX},
	} {
		r, err := c.Role(tc.role)
		require.NoError(t, err, tc.role)
		assert.Same(t, tc.reg, r, tc.role)
	}

	_, err := c.Role(asm.RoleLink)
	assert.True(t, errors.Is(err, asm.ErrUnsupportedRole))
	assert.Contains(t, err.Error(), "link")
}

func TestEmitCallArity(t *testing.T) {
	c := SysV{}
	rules := len(c.ArgRules())

	for argc := 0; argc <= 9; argc++ {
		var x asm.Text

		args := make([]asm.Operand, argc)
		for i := range args {
			args[i] = asm.Imm{Value: int64(i), Bits: 32}
		}

		err := c.EmitCall(&x, asm.Label{Name: "f"}, args, nil)
		require.NoError(t, err)

		call := -1
		for i, l := range x.Lines {
			if l == "\tcall f" {
				call = i
			}
		}

		require.NotEqual(t, -1, call, "argc %d", argc)

		excess := argc - rules
		if excess <= 0 {
			assert.Len(t, x.Lines, call+1, "argc %d", argc)
			continue
		}

		require.Greater(t, len(x.Lines), call+1)
		assert.Equal(t, "\tadd rsp, "+strconv.Itoa(8*excess), x.Lines[call+1], "argc %d", argc)

		pushes := 0
		for _, l := range x.Lines {
			if strings.HasPrefix(l, "\tpush") {
				pushes++
			}
		}

		assert.Equal(t, excess, pushes, "argc %d", argc)
	}
}

func TestEmitCallOrder(t *testing.T) {
	var x asm.Text

	args := make([]asm.Operand, 7)
	for i := range args {
		args[i] = asm.Imm{Value: int64(i + 1), Bits: 32}
	}

	err := SysV{}.EmitCall(&x, asm.Label{Name: "f"}, args, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"\tsub rsp, 8",
		"\tpush qword 7",
		"\tmov r9d, 6",
		"\tmov r8d, 5",
		"\tmov ecx, 4",
		"\tmov edx, 3",
		"\tmov esi, 2",
		"\tmov edi, 1",
		"\txor eax, eax",
		"\tcall f",
		"\tadd rsp, 8",
		"\tadd rsp, 8",
	}, x.Lines)
}

func TestEmitSyscall(t *testing.T) {
	var x asm.Text

	args := []asm.Operand{
		asm.Imm{Value: 1, Bits: 64},
		asm.Ptr{Label: "str0", PIC: true},
		asm.Imm{Value: 5, Bits: 64},
	}

	err := SysV{}.EmitSyscall(&x, asm.Imm{Value: 1, Bits: 64}, args, nil, regSet{RSI: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"\tpush rsi",
		"\tmov edx, 5",
		"\tlea rsi, [rel str0]",
		"\tmov edi, 1",
		"\tmov eax, 1",
		"\tsyscall",
		"\tpop rsi",
	}, x.Lines)

	x = asm.Text{}

	err = SysV{}.EmitSyscall(&x, asm.Imm{Value: 60, Bits: 64}, args[:1], nil, regSet{RDI: true, RSI: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"\tpush rdi",
		"\tmov edi, 1",
		"\tmov eax, 60",
		"\tsyscall",
		"\tpop rdi",
	}, x.Lines)

	err = SysV{}.EmitSyscall(&x, asm.Imm{Value: 1, Bits: 64}, make([]asm.Operand, 7), nil, nil)
	assert.True(t, errors.Is(err, asm.ErrTooManySyscallArgs))
}

func TestEmitExit(t *testing.T) {
	var x asm.Text

	require.NoError(t, SysV{}.EmitExit(&x))

	assert.Equal(t, []string{
		"\tmov rdi, rax",
		"\tmov rax, 60",
		"\tsyscall",
	}, x.Lines)
}
