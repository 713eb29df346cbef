// Package target provides read access to the memory of an inspected process. It
// holds the collaborator interface the inspection core reads through, a typed
// reader on top of it and a few implementations: a live process, a core file and
// an in-memory image.
package target

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/tanema/luapeek/src/lerrors"
)

type (
	// Memory is anything that can copy bytes out of a target address space. A failed
	// read means the address is not mapped in the snapshot.
	Memory interface {
		ReadAt(p []byte, addr Address) error
	}
	// Reader decodes fixed width integers, floats and pointers from a Memory.
	Reader struct {
		mem     Memory
		order   binary.ByteOrder
		ptrSize int64
	}
)

// NewReader creates a reader for a target with the given byte order and pointer size.
func NewReader(mem Memory, order binary.ByteOrder, ptrSize int64) *Reader {
	return &Reader{mem: mem, order: order, ptrSize: ptrSize}
}

// Memory returns the memory the reader decodes from.
func (r *Reader) Memory() Memory { return r.mem }

// PtrSize returns the size of a pointer in the target.
func (r *Reader) PtrSize() int64 { return r.ptrSize }

// Read fills p from addr.
func (r *Reader) Read(addr Address, p []byte) error {
	if err := r.mem.ReadAt(p, addr); err != nil {
		if lerrors.Is(err, lerrors.ReadFailure) {
			return err
		}
		return lerrors.Wrap(lerrors.ReadFailure, uint64(addr), errors.Wrapf(err, "reading %d bytes", len(p)))
	}
	return nil
}

// Bytes reads n bytes at addr.
func (r *Reader) Bytes(addr Address, n int64) ([]byte, error) {
	if n < 0 {
		return nil, lerrors.New(lerrors.ReadFailure, uint64(addr), "negative length %d", n)
	}
	buf := make([]byte, n)
	if err := r.Read(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// U8 reads a byte.
func (r *Reader) U8(addr Address) (uint8, error) {
	var buf [1]byte
	if err := r.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// I8 reads a signed byte.
func (r *Reader) I8(addr Address) (int8, error) {
	v, err := r.U8(addr)
	return int8(v), err
}

// U16 reads an unsigned short.
func (r *Reader) U16(addr Address) (uint16, error) {
	var buf [2]byte
	if err := r.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return r.order.Uint16(buf[:]), nil
}

// I16 reads a short.
func (r *Reader) I16(addr Address) (int16, error) {
	v, err := r.U16(addr)
	return int16(v), err
}

// U32 reads an unsigned int.
func (r *Reader) U32(addr Address) (uint32, error) {
	var buf [4]byte
	if err := r.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return r.order.Uint32(buf[:]), nil
}

// I32 reads an int.
func (r *Reader) I32(addr Address) (int32, error) {
	v, err := r.U32(addr)
	return int32(v), err
}

// U64 reads an unsigned 64 bit integer.
func (r *Reader) U64(addr Address) (uint64, error) {
	var buf [8]byte
	if err := r.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return r.order.Uint64(buf[:]), nil
}

// I64 reads a 64 bit integer.
func (r *Reader) I64(addr Address) (int64, error) {
	v, err := r.U64(addr)
	return int64(v), err
}

// F64 reads a double.
func (r *Reader) F64(addr Address) (float64, error) {
	v, err := r.U64(addr)
	return math.Float64frombits(v), err
}

// Ptr reads a pointer sized value.
func (r *Reader) Ptr(addr Address) (Address, error) {
	if r.ptrSize == 4 {
		v, err := r.U32(addr)
		return Address(v), err
	}
	v, err := r.U64(addr)
	return Address(v), err
}

// Word reads a signed pointer sized value such as ptrdiff_t.
func (r *Reader) Word(addr Address) (int64, error) {
	if r.ptrSize == 4 {
		v, err := r.I32(addr)
		return int64(v), err
	}
	return r.I64(addr)
}
