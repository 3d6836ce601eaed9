package back

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/asm"
)

type (
	// Allocator hands out scratch registers from a LIFO pool.
	Allocator struct {
		pool  []*asm.Reg
		inUse []*asm.Reg
	}
)

// TempHeadroom is the number of registers AllocateTemp leaves free
// for operand materialization.
const TempHeadroom = 2

var ErrNotInUse = errors.New("register is not in use")

// NewAllocator seeds the pool so that regs are handed out in order.
func NewAllocator(regs []*asm.Reg) *Allocator {
	a := &Allocator{
		pool:  make([]*asm.Reg, 0, len(regs)),
		inUse: make([]*asm.Reg, 0, len(regs)),
	}

	for i := len(regs) - 1; i >= 0; i-- {
		a.pool = append(a.pool, regs[i])
	}

	return a
}

func (a *Allocator) Allocate() (*asm.Reg, bool) {
	if len(a.pool) == 0 {
		return nil, false
	}

	r := a.pool[len(a.pool)-1]
	a.pool = a.pool[:len(a.pool)-1]
	a.inUse = append(a.inUse, r)

	tlog.V("regalloc").Printw("allocate", "reg", r, "free", len(a.pool))

	return r, true
}

// AllocateTemp is Allocate which refuses to take the last TempHeadroom registers.
func (a *Allocator) AllocateTemp() (*asm.Reg, bool) {
	if len(a.pool) <= TempHeadroom {
		return nil, false
	}

	return a.Allocate()
}

func (a *Allocator) Release(r *asm.Reg) error {
	for i, x := range a.inUse {
		if x != r {
			continue
		}

		copy(a.inUse[i:], a.inUse[i+1:])
		a.inUse = a.inUse[:len(a.inUse)-1]

		a.pool = append(a.pool, r)

		tlog.V("regalloc").Printw("release", "reg", r, "free", len(a.pool))

		return nil
	}

	return errors.Wrap(ErrNotInUse, "release %v", r)
}

func (a *Allocator) InUse(r *asm.Reg) bool {
	for _, x := range a.inUse {
		if x == r {
			return true
		}
	}

	return false
}

func (a *Allocator) Free() int { return len(a.pool) }

// Used returns registers in use in allocation order.
func (a *Allocator) Used() []*asm.Reg { return a.inUse }
