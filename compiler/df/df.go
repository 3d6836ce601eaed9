package df

import (
	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler/ir"
	"github.com/slowlang/lowc/compiler/set"
)

type (
	Temps = set.Bits[int]

	// Block holds liveness facts for one block. Sets are keyed by temp id.
	Block struct {
		Use Temps
		Def Temps

		LiveIn  Temps
		LiveOut Temps

		Succ []int
		Pred []int
	}

	Liveness struct {
		Blocks []Block

		// Iterations is the number of block visits until the fixed point.
		Iterations int
	}
)

// UseDef scans a block once: Use gets temps read before any write in the block,
// Def gets temps the block writes.
func UseDef(b *ir.Block) (use, def Temps) {
	for _, in := range b.Instrs {
		for _, a := range in.Uses() {
			t, ok := a.(*ir.Temp)
			if !ok || def.IsSet(t.ID) {
				continue
			}

			use.Set(t.ID)
		}

		if t := in.Def(); t != nil {
			def.Set(t.ID)
		}
	}

	return use, def
}

// Successors builds the control flow graph from block terminators.
func Successors(f *ir.Func) ([][]int, error) {
	succ := make([][]int, len(f.Blocks))

	for i, b := range f.Blocks {
		fall := i + 1
		if fall >= len(f.Blocks) {
			fall = -1
		}

		last := b.Last()
		if last == nil {
			succ[i] = appendEdge(succ[i], fall)
			continue
		}

		switch last.Op {
		case ir.OpRet:
		case ir.OpJump, ir.OpCJump:
			l, _ := last.Target()

			to := f.BlockIndex(l)
			if to < 0 {
				return nil, errors.New("block %v: no such label: %v", b.Label, l)
			}

			succ[i] = appendEdge(succ[i], to)

			if last.Op == ir.OpCJump {
				succ[i] = appendEdge(succ[i], fall)
			}
		default:
			succ[i] = appendEdge(succ[i], fall)
		}
	}

	return succ, nil
}

func appendEdge(s []int, to int) []int {
	if to < 0 {
		return s
	}

	for _, x := range s {
		if x == to {
			return s
		}
	}

	return append(s, to)
}

// Analyze computes block liveness of a function.
func Analyze(f *ir.Func) (*Liveness, error) {
	succ, err := Successors(f)
	if err != nil {
		return nil, errors.Wrap(err, "cfg")
	}

	l := &Liveness{Blocks: make([]Block, len(f.Blocks))}

	for i, b := range f.Blocks {
		x := &l.Blocks[i]

		x.Use, x.Def = UseDef(b)
		x.Succ = succ[i]
	}

	l.Iterations = Solve(l.Blocks)

	return l, nil
}

// Solve runs the backward liveness equations to a fixed point:
//
//	LiveOut = union of LiveIn over successors
//	LiveIn  = Use + (LiveOut - Def)
//
// Blocks are visited from a worklist ordered by descending index.
// Pred lists are filled from Succ.
func Solve(bs []Block) (visits int) {
	for i := range bs {
		bs[i].Pred = bs[i].Pred[:0]
	}

	for i, b := range bs {
		for _, s := range b.Succ {
			bs[s].Pred = append(bs[s].Pred, i)
		}
	}

	q := heap.Heap[int]{Less: func(d []int, i, j int) bool { return d[i] > d[j] }}
	var queued set.Bits[int]

	for i := range bs {
		q.Push(i)
		queued.Set(i)
	}

	for q.Len() != 0 {
		i := q.Pop()
		queued.Clear(i)
		visits++

		b := &bs[i]

		for _, s := range b.Succ {
			b.LiveOut.Merge(bs[s].LiveIn)
		}

		in := b.LiveOut.Copy()
		in.Substract(b.Def)
		in.Merge(b.Use)

		if in.Equal(b.LiveIn) {
			continue
		}

		b.LiveIn = in

		tlog.V("liveness").Printw("live in changed", "block", i, "live_in", b.LiveIn, "live_out", b.LiveOut)

		for _, p := range b.Pred {
			if queued.IsSet(p) {
				continue
			}

			q.Push(p)
			queued.Set(p)
		}
	}

	return visits
}

func (l *Liveness) LiveOut(block int) Temps {
	return l.Blocks[block].LiveOut
}
