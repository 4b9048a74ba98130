package stream

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/chazu/prota/vm"
)

// Legacy record types
const (
	legacyImmediate = iota
	legacyChar
	legacyUnichar
	legacyBinary
	legacyArray
	legacyPlainArray
	legacyFrame
	legacySymbol
	legacyString
	legacyPrecedent
	legacyNil
	legacySmallRect
	legacyLargeBinary
)

// maxLegacySymbol is the longest symbol name a legacy stream may carry.
const maxLegacySymbol = 254

type legacyReader struct {
	h          *vm.Heap
	in         *bytes.Reader
	precedents []vm.Value
}

// ReadLegacy reads a legacy byte stream into h and returns its root.
//
// Every object is entered in a precedent table in the order its record
// starts, and a precedent record refers back to an earlier entry, which is
// how shared and cyclic structure is written. Lengths are one byte, or 255
// followed by a 4-byte big-endian length.
func ReadLegacy(h *vm.Heap, data []byte) (vm.Value, error) {
	r := &legacyReader{h: h, in: bytes.NewReader(data)}
	version, err := r.in.ReadByte()
	if err != nil || (version != 1 && version != 2) {
		return vm.Nil, badFormat()
	}
	v, err := r.readOne()
	if err != nil {
		return vm.Nil, err
	}
	log.Debugf("read legacy stream version %d, %d precedents", version, len(r.precedents))
	return v, nil
}

func (r *legacyReader) add(v vm.Value) int {
	r.precedents = append(r.precedents, v)
	return len(r.precedents) - 1
}

func (r *legacyReader) readByte() (byte, error) {
	b, err := r.in.ReadByte()
	if err != nil {
		return 0, badFormat()
	}
	return b, nil
}

func (r *legacyReader) xlong() (int, error) {
	b, err := r.readByte()
	if err != nil || b != 255 {
		return int(b), err
	}
	var buf [4]byte
	if _, err := io.ReadFull(r.in, buf[:]); err != nil {
		return 0, badFormat()
	}
	return int(int32(binary.BigEndian.Uint32(buf[:]))), nil
}

// length reads a length and checks that at least unit*n bytes remain, so a
// corrupt length cannot force a huge allocation.
func (r *legacyReader) length(unit int) (int, error) {
	n, err := r.xlong()
	if err != nil {
		return 0, err
	}
	if n < 0 || n*unit > r.in.Len() {
		return 0, badFormat()
	}
	return n, nil
}

func (r *legacyReader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.in, buf); err != nil {
		return nil, badFormat()
	}
	return buf, nil
}

func (r *legacyReader) readOne() (vm.Value, error) {
	h := r.h
	op, err := r.readByte()
	if err != nil {
		return vm.Nil, err
	}

	switch op {
	case legacyImmediate:
		n, err := r.xlong()
		if err != nil {
			return vm.Nil, err
		}
		v := vm.Value(int64(n))
		if v.IsRef() {
			return vm.Nil, badFormat()
		}
		return v, nil

	case legacyChar:
		b, err := r.readByte()
		return vm.FromChar(rune(b)), err

	case legacyUnichar:
		hi, err := r.readByte()
		if err != nil {
			return vm.Nil, err
		}
		lo, err := r.readByte()
		return vm.FromChar(rune(hi)<<8 | rune(lo)), err

	case legacyBinary:
		n, err := r.length(1)
		if err != nil {
			return vm.Nil, err
		}
		v, err := h.NewBinarySize(vm.Nil, n)
		if err != nil {
			return vm.Nil, err
		}
		r.add(v)
		if err := r.readClass(v); err != nil {
			return vm.Nil, err
		}
		data, err := h.Data(v)
		if err != nil {
			return vm.Nil, err
		}
		if _, err := io.ReadFull(r.in, data); err != nil {
			return vm.Nil, badFormat()
		}
		return v, nil

	case legacyArray, legacyPlainArray:
		n, err := r.length(1)
		if err != nil {
			return vm.Nil, err
		}
		v, err := h.NewArray(h.Sym.Array, n)
		if err != nil {
			return vm.Nil, err
		}
		r.add(v)
		if op == legacyArray {
			if err := r.readClass(v); err != nil {
				return vm.Nil, err
			}
		}
		for i := 0; i < n; i++ {
			elem, err := r.readOne()
			if err != nil {
				return vm.Nil, err
			}
			if err := h.SetIndex(v, i, elem); err != nil {
				return vm.Nil, err
			}
		}
		return v, nil

	case legacyFrame:
		return r.readFrame()

	case legacySymbol:
		n, err := r.length(1)
		if err != nil {
			return vm.Nil, err
		}
		if n == 0 || n > maxLegacySymbol {
			return vm.Nil, badFormat()
		}
		name, err := r.readBytes(n)
		if err != nil {
			return vm.Nil, err
		}
		v := h.Intern(string(name))
		r.add(v)
		return v, nil

	case legacyString:
		n, err := r.length(1)
		if err != nil {
			return vm.Nil, err
		}
		data, err := r.readBytes(n)
		if err != nil {
			return vm.Nil, err
		}
		v := h.NewBinary(h.Sym.String, data)
		r.add(v)
		return v, nil

	case legacyPrecedent:
		i, err := r.xlong()
		if err != nil {
			return vm.Nil, err
		}
		if i < 0 || i >= len(r.precedents) {
			return vm.Nil, badFormat()
		}
		return r.precedents[i], nil

	case legacyNil:
		return vm.Nil, nil

	case legacySmallRect:
		return r.readSmallRect()
	}
	// legacyLargeBinary and anything unknown
	return vm.Nil, badFormat()
}

func (r *legacyReader) readClass(obj vm.Value) error {
	cls, err := r.readOne()
	if err != nil {
		return err
	}
	return r.h.SetClass(obj, cls)
}

// readFrame reads a tag count, the tags and then the values. The frame's
// precedent entry is reserved before the tags are read and holds nil until
// the frame exists; tags are symbols, so nothing can refer to it earlier.
func (r *legacyReader) readFrame() (vm.Value, error) {
	h := r.h
	index := r.add(vm.Nil)
	n, err := r.length(1)
	if err != nil {
		return vm.Nil, err
	}
	tags := make([]vm.Value, n)
	seen := make(map[vm.Value]bool, n)
	for i := range tags {
		tag, err := r.readOne()
		if err != nil {
			return vm.Nil, err
		}
		if seen[tag] {
			return vm.Nil, badFormat()
		}
		seen[tag] = true
		tags[i] = tag
	}
	mapv, err := h.NewMapWithTags(tags, vm.Nil)
	if err != nil {
		return vm.Nil, err
	}
	v, err := h.NewFrameWithMap(mapv)
	if err != nil {
		return vm.Nil, err
	}
	r.precedents[index] = v
	for i := 0; i < n; i++ {
		val, err := r.readOne()
		if err != nil {
			return vm.Nil, err
		}
		if err := h.SetFrameValueAt(v, i, val); err != nil {
			return vm.Nil, err
		}
	}
	return v, nil
}

func (r *legacyReader) readSmallRect() (vm.Value, error) {
	h := r.h
	f := h.NewFrame()
	r.add(f)
	for _, tag := range []vm.Value{h.Sym.Top, h.Sym.Left, h.Sym.Bottom, h.Sym.Right} {
		b, err := r.readByte()
		if err != nil {
			return vm.Nil, err
		}
		if err := h.SetSlot(f, tag, vm.FromInt(int64(b))); err != nil {
			return vm.Nil, err
		}
	}
	return f, nil
}
