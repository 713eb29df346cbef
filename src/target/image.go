package target

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/tanema/luapeek/src/lerrors"
)

type (
	// Image is a sparse in-memory address space. Regions are created with Alloc or
	// Map and filled with the Put helpers.
	Image struct {
		order   binary.ByteOrder
		regions []*region
		next    Address
	}
	region struct {
		start Address
		data  []byte
	}
)

const imageBase = Address(0x10000)

// NewImage creates an empty image that encodes values with the given byte order.
func NewImage(order binary.ByteOrder) *Image {
	return &Image{order: order, next: imageBase}
}

func (r *region) end() Address { return r.start.Add(int64(len(r.data))) }

// Map creates a zeroed region of size bytes at addr.
func (img *Image) Map(addr Address, size int64) {
	reg := &region{start: addr, data: make([]byte, size)}
	idx := sort.Search(len(img.regions), func(i int) bool { return img.regions[i].start >= addr })
	img.regions = append(img.regions, nil)
	copy(img.regions[idx+1:], img.regions[idx:])
	img.regions[idx] = reg
	if end := reg.end(); end > img.next {
		img.next = end.Add(15).Align(16)
	}
}

// Alloc maps a fresh zeroed region of size bytes and returns its address. A guard
// gap is left between allocations so that overruns fail to read.
func (img *Image) Alloc(size int64) Address {
	if size <= 0 {
		size = 1
	}
	addr := img.next.Add(16)
	img.Map(addr, size)
	return addr
}

func (img *Image) find(addr Address, n int) *region {
	idx := sort.Search(len(img.regions), func(i int) bool { return img.regions[i].end() > addr })
	if idx == len(img.regions) {
		return nil
	}
	reg := img.regions[idx]
	if addr < reg.start || addr.Add(int64(n)) > reg.end() {
		return nil
	}
	return reg
}

// ReadAt implements Memory.
func (img *Image) ReadAt(p []byte, addr Address) error {
	reg := img.find(addr, len(p))
	if reg == nil {
		return lerrors.New(lerrors.ReadFailure, uint64(addr), "%d bytes not mapped", len(p))
	}
	copy(p, reg.data[addr.Sub(reg.start):])
	return nil
}

// Put copies p to addr. It panics when addr is not mapped, images are built by
// code and a bad write is a bug in that code.
func (img *Image) Put(addr Address, p []byte) {
	reg := img.find(addr, len(p))
	if reg == nil {
		panic(errors.Errorf("image: write of %d bytes to unmapped memory at %v", len(p), addr))
	}
	copy(reg.data[addr.Sub(reg.start):], p)
}

// PutU8 writes a byte.
func (img *Image) PutU8(addr Address, v uint8) { img.Put(addr, []byte{v}) }

// PutU16 writes an unsigned short.
func (img *Image) PutU16(addr Address, v uint16) {
	var buf [2]byte
	img.order.PutUint16(buf[:], v)
	img.Put(addr, buf[:])
}

// PutU32 writes an unsigned int.
func (img *Image) PutU32(addr Address, v uint32) {
	var buf [4]byte
	img.order.PutUint32(buf[:], v)
	img.Put(addr, buf[:])
}

// PutU64 writes an unsigned 64 bit integer.
func (img *Image) PutU64(addr Address, v uint64) {
	var buf [8]byte
	img.order.PutUint64(buf[:], v)
	img.Put(addr, buf[:])
}

// PutI32 writes an int.
func (img *Image) PutI32(addr Address, v int32) { img.PutU32(addr, uint32(v)) }

// PutI64 writes a 64 bit integer.
func (img *Image) PutI64(addr Address, v int64) { img.PutU64(addr, uint64(v)) }

// PutF64 writes a double.
func (img *Image) PutF64(addr Address, v float64) { img.PutU64(addr, math.Float64bits(v)) }

// PutPtr writes a 64 bit pointer.
func (img *Image) PutPtr(addr, v Address) { img.PutU64(addr, uint64(v)) }
