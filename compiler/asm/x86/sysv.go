package x86

import (
	"tlog.app/go/errors"

	"github.com/slowlang/lowc/compiler/asm"
)

type (
	SysV struct{}
)

var (
	sysvArgs = []asm.ArgRule{
		{Reg: RDI},
		{Reg: RSI},
		{Reg: RDX},
		{Reg: RCX},
		{Reg: R8},
		{Reg: R9},
	}

	sysvSyscallArgs = []asm.ArgRule{
		{Reg: RDI},
		{Reg: RSI},
		{Reg: RDX},
		{Reg: R10},
		{Reg: R8},
		{Reg: R9},
	}

	sysvScratch     = []*asm.Reg{RBX, R12, R13, R14, R15}
	sysvCalleeSaved = []*asm.Reg{RBX, RBP, R12, R13, R14, R15}
)

const exitSyscall = 60

// Lookup returns a calling convention by name.
func Lookup(name string) (asm.Convention, error) {
	switch name {
	case "sysv", "":
		return SysV{}, nil
	}

	return nil, errors.New("unsupported calling convention: %q", name)
}

func (SysV) Name() string { return "sysv" }

func (SysV) Stack() asm.StackPolicy {
	return asm.StackPolicy{
		Align:         16,
		CallerCleanup: true,
		RedZone:       128,
	}
}

func (SysV) PIC() bool { return true }

func (SysV) ArgRules() []asm.ArgRule     { return sysvArgs }
func (SysV) SyscallRules() []asm.ArgRule { return sysvSyscallArgs }
func (SysV) Scratch() []*asm.Reg         { return sysvScratch }
func (SysV) CalleeSaved() []*asm.Reg     { return sysvCalleeSaved }

func (c SysV) Role(r asm.Role) (*asm.Reg, error) {
	switch r {
	case asm.RoleStackPointer:
		return RSP, nil
	case asm.RoleBasePointer:
		return RBP, nil
	case asm.RoleProgramCounter:
		return RIP, nil
	case asm.RoleSyscallNumber, asm.RoleReturn, asm.RoleMulLow, asm.RoleDivDividend, asm.RoleDivQuotient:
		return RAX, nil
	case asm.RoleReturnHigh, asm.RoleMulHigh, asm.RoleDivRemainder:
		return RDX, nil
	case asm.RoleReturnFloat, asm.RoleReturnDouble:
		return XMM0, nil
	case asm.RoleAddrBase:
		return R10, nil
	case asm.RoleAddrIndex:
		return R11, nil
	}

	return nil, errors.Wrap(asm.ErrUnsupportedRole, "%v: %v", c.Name(), r)
}

func (c SysV) EmitCall(t *asm.Text, target asm.Operand, args []asm.Operand, signed []bool) (err error) {
	rsp := asm.Register{R: RSP, Bits: 64}
	excess := asm.StackArgs(c, len(args))

	// an odd number of pushed args gets an 8 byte pad so rsp stays 16 aligned at the call,
	// the pad is removed after the argument cleanup
	if excess%2 == 1 {
		t.Ins("sub", rsp, asm.Imm{Value: 8, Bits: 64})
	}

	for i := len(args) - 1; i >= 0; i-- {
		if i >= len(sysvArgs) {
			err = t.Push(args[i], signedAt(signed, i), RAX)
			if err != nil {
				return errors.Wrap(err, "arg %d", i)
			}

			continue
		}

		err = c.moveArg(t, sysvArgs[i].Reg, args[i], signedAt(signed, i))
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}
	}

	// al holds the number of vector args for variadic callees
	t.Ins("xor", asm.Register{R: RAX, Bits: 32}, asm.Register{R: RAX, Bits: 32})
	t.Ins("call", target)

	if c.Stack().CallerCleanup && excess > 0 {
		t.Ins("add", rsp, asm.Imm{Value: int64(8 * excess), Bits: 64})

		if excess%2 == 1 {
			t.Ins("add", rsp, asm.Imm{Value: 8, Bits: 64})
		}
	}

	return nil
}

func (c SysV) EmitSyscall(t *asm.Text, num asm.Operand, args []asm.Operand, signed []bool, inUse asm.RegUse) (err error) {
	if len(args) > len(sysvSyscallArgs) {
		return errors.Wrap(asm.ErrTooManySyscallArgs, "%d args, %d registers", len(args), len(sysvSyscallArgs))
	}

	// the backend scratch pool doesn't overlap syscall argument registers,
	// inUse matters for callers keeping values in them
	var saved []*asm.Reg

	for i := range args {
		r := sysvSyscallArgs[i].Reg

		if inUse == nil || !inUse.InUse(r) {
			continue
		}

		t.Ins("push", asm.Register{R: r, Bits: 64})
		saved = append(saved, r)
	}

	for i := len(args) - 1; i >= 0; i-- {
		err = c.moveArg(t, sysvSyscallArgs[i].Reg, args[i], signedAt(signed, i))
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}
	}

	err = t.Move(asm.Register{R: RAX, Bits: 64}, num, true, nil)
	if err != nil {
		return errors.Wrap(err, "syscall number")
	}

	t.Ins("syscall")

	for i := len(saved) - 1; i >= 0; i-- {
		t.Ins("pop", asm.Register{R: saved[i], Bits: 64})
	}

	return nil
}

func (c SysV) EmitExit(t *asm.Text) error {
	t.Ins("mov", asm.Register{R: RDI, Bits: 64}, asm.Register{R: RAX, Bits: 64})
	t.Ins("mov", asm.Register{R: RAX, Bits: 64}, asm.Imm{Value: exitSyscall, Bits: 64})
	t.Ins("syscall")

	return nil
}

func (c SysV) moveArg(t *asm.Text, r *asm.Reg, a asm.Operand, signed bool) error {
	bits := 64

	switch a := a.(type) {
	case asm.Register, asm.Mem:
		if s := a.Size(); s != 0 && s <= 32 {
			bits = 32
		}
	case asm.Imm:
		if a.Bits != 0 && a.Bits <= 32 {
			bits = 32
		}
	}

	d, err := asm.RegOf(r, bits)
	if err != nil {
		return err
	}

	return t.Move(d, a, signed, RAX)
}

func signedAt(s []bool, i int) bool {
	return i < len(s) && s[i]
}
