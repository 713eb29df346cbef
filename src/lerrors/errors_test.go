package lerrors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	cases := []struct {
		err      *Error
		expected string
	}{
		{New(ReadFailure, 0x10, "short read"), "read failure at 0x10: short read"},
		{New(TypeMismatch, 0xff, "expected %v", "table"), "type mismatch at 0xff: expected table"},
		{New(NotManagedFrame, 0x20, "no saved pc"), "not a Lua frame (ci 0x20): no saved pc"},
		{New(CorruptSnapshot, 0x30, "loop"), "corrupt snapshot at 0x30: loop"},
		{New(LayoutErr, 0, "bad size"), "layout error: bad size"},
	}
	for i, tc := range cases {
		assert.Equal(t, tc.expected, tc.err.Error(), "[%v]", i)
	}
}

func TestIs(t *testing.T) {
	err := errors.Wrap(New(TypeMismatch, 1, "x"), "reading closure")
	assert.True(t, Is(err, TypeMismatch))
	assert.False(t, Is(err, ReadFailure))
	assert.False(t, Is(fmt.Errorf("plain"), ReadFailure))
	assert.Equal(t, "error kind 42", ErrorKind(42).String())
}
