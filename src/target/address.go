package target

import "fmt"

// An Address is a location in the target's address space.
type Address uint64

// Add adds x to address a.
func (a Address) Add(x int64) Address {
	return a + Address(x)
}

// Sub subtracts b from a. Requires a >= b.
func (a Address) Sub(b Address) int64 {
	return int64(a - b)
}

// Index returns the address of element i in an array of size-byte elements at a.
func (a Address) Index(i, size int64) Address {
	return a.Add(i * size)
}

// Align rounds a down to a multiple of x. x must be a power of 2.
func (a Address) Align(x int64) Address {
	return a &^ (Address(x) - 1)
}

// IsNil reports whether a is the null pointer.
func (a Address) IsNil() bool {
	return a == 0
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}
