package asm

import (
	"strconv"

	"tlog.app/go/errors"
)

type (
	Role int

	ArgRule struct {
		Class Class
		Reg   *Reg
	}

	StackPolicy struct {
		Align         int
		CallerCleanup bool
		RedZone       int
	}

	// RegUse reports registers currently holding live values.
	RegUse interface {
		InUse(r *Reg) bool
	}

	// Convention is a calling convention with its register model.
	Convention interface {
		Name() string
		Stack() StackPolicy
		PIC() bool

		ArgRules() []ArgRule
		SyscallRules() []ArgRule

		Scratch() []*Reg
		CalleeSaved() []*Reg

		Role(Role) (*Reg, error)

		// EmitCall passes args right to left and calls target.
		// Args are 64 bit unless they are registers or memory of other width.
		EmitCall(t *Text, target Operand, args []Operand, signed []bool) error

		// EmitSyscall leaves the result in the syscall number register.
		EmitSyscall(t *Text, num Operand, args []Operand, signed []bool, inUse RegUse) error

		// EmitExit terminates the process with the return value register as status.
		EmitExit(t *Text) error
	}
)

const (
	RoleStackPointer Role = iota
	RoleBasePointer
	RoleProgramCounter
	RoleLink
	RoleSyscallNumber
	RoleReturn
	RoleReturnHigh
	RoleReturnFloat
	RoleReturnDouble
	RoleAddrBase
	RoleAddrIndex
	RoleMulLow
	RoleMulHigh
	RoleDivDividend
	RoleDivQuotient
	RoleDivRemainder

	roleCount
)

var (
	ErrUnsupportedRole    = errors.New("unsupported register role")
	ErrTooManySyscallArgs = errors.New("too many syscall arguments")
)

var roleNames = [...]string{
	RoleStackPointer:   "stack_pointer",
	RoleBasePointer:    "base_pointer",
	RoleProgramCounter: "program_counter",
	RoleLink:           "link",
	RoleSyscallNumber:  "syscall_number",
	RoleReturn:         "return",
	RoleReturnHigh:     "return_high",
	RoleReturnFloat:    "return_float",
	RoleReturnDouble:   "return_double",
	RoleAddrBase:       "address_base",
	RoleAddrIndex:      "address_index",
	RoleMulLow:         "mul_low",
	RoleMulHigh:        "mul_high",
	RoleDivDividend:    "div_dividend",
	RoleDivQuotient:    "div_quotient",
	RoleDivRemainder:   "div_remainder",
}

func (r Role) String() string {
	if r < 0 || r >= roleCount {
		return "role(" + strconv.Itoa(int(r)) + ")"
	}

	return roleNames[r]
}

// MustRole is for roles every convention has.
func MustRole(c Convention, r Role) *Reg {
	x, err := c.Role(r)
	if err != nil {
		panic(err)
	}

	return x
}

// StackArgs is the number of args passed on the stack.
func StackArgs(c Convention, argc int) int {
	return max(0, argc-len(c.ArgRules()))
}
