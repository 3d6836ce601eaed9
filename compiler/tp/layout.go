package tp

import (
	"tlog.app/go/errors"
)

type (
	Field struct {
		Name   string
		Type   *Type
		Public bool
		Index  int
	}

	Layout struct {
		Offsets []int
		Size    int
		Align   int
	}
)

var ErrBadAlignment = errors.New("non-positive alignment")

func AlignUp(off, align int) (int, error) {
	if align <= 0 {
		return 0, errors.Wrap(ErrBadAlignment, "align %d", align)
	}

	return (off + align - 1) / align * align, nil
}

// ComputeLayout places fields in declaration order.
// Packed structs use alignment 1 for every field and no tail padding.
func ComputeLayout(fields []Field, packed bool) (l Layout, err error) {
	l.Offsets = make([]int, len(fields))
	l.Align = 1

	off := 0

	for i, f := range fields {
		if f.Type == nil {
			return Layout{}, errors.New("field %v: no type", f.Name)
		}

		align := f.Type.Align
		if packed {
			align = 1
		}

		off, err = AlignUp(off, align)
		if err != nil {
			return Layout{}, errors.Wrap(err, "field %v", f.Name)
		}

		l.Offsets[i] = off
		off += f.Type.Size()

		if align > l.Align {
			l.Align = align
		}
	}

	if packed {
		l.Size = off

		return l, nil
	}

	l.Size, err = AlignUp(off, l.Align)
	if err != nil {
		return Layout{}, err
	}

	return l, nil
}

func (l Layout) Offset(i int) int {
	return l.Offsets[i]
}
