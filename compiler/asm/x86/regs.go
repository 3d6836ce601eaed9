package x86

import (
	"strconv"

	"github.com/slowlang/lowc/compiler/asm"
)

var (
	RAX = gpr(0, "al", "ax", "eax", "rax")
	RCX = gpr(1, "cl", "cx", "ecx", "rcx")
	RDX = gpr(2, "dl", "dx", "edx", "rdx")
	RBX = gpr(3, "bl", "bx", "ebx", "rbx")
	RSP = gpr(4, "spl", "sp", "esp", "rsp")
	RBP = gpr(5, "bpl", "bp", "ebp", "rbp")
	RSI = gpr(6, "sil", "si", "esi", "rsi")
	RDI = gpr(7, "dil", "di", "edi", "rdi")
	R8  = rn(8)
	R9  = rn(9)
	R10 = rn(10)
	R11 = rn(11)
	R12 = rn(12)
	R13 = rn(13)
	R14 = rn(14)
	R15 = rn(15)

	RIP = &asm.Reg{ID: 16, Names: [4]string{3: "rip"}}

	XMM0 = &asm.Reg{ID: 17, Class: asm.Float, Names: [4]string{2: "xmm0", 3: "xmm0"}}
)

var Registers = []*asm.Reg{RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15, RIP, XMM0}

func gpr(id int, b, w, d, q string) *asm.Reg {
	return &asm.Reg{ID: id, Names: [4]string{b, w, d, q}}
}

func rn(id int) *asm.Reg {
	n := "r" + strconv.Itoa(id)

	return gpr(id, n+"b", n+"w", n+"d", n)
}
