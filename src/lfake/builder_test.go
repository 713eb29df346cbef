package lfake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/lobject"
)

func TestEncodeLines(t *testing.T) {
	t.Run("small deltas", func(t *testing.T) {
		deltas, abs := EncodeLines(10, []int{11, 11, 12, 10})
		assert.Equal(t, []int8{1, 0, 1, -2}, deltas)
		assert.Empty(t, abs)
	})

	t.Run("large jump", func(t *testing.T) {
		deltas, abs := EncodeLines(1, []int{2, 500, 501})
		assert.Equal(t, []int8{1, conf.ABSLINEINFO, 1}, deltas)
		assert.Equal(t, []lobject.AbsLineInfo{{PC: 1, Line: 500}}, abs)
	})

	t.Run("checkpoint interval", func(t *testing.T) {
		lines := make([]int, 2*conf.MAXIWTHABS+1)
		for i := range lines {
			lines[i] = 1
		}
		_, abs := EncodeLines(1, lines)
		require.Len(t, abs, 2)
		assert.Equal(t, int32(conf.MAXIWTHABS), abs[0].PC)
		assert.Equal(t, int32(2*conf.MAXIWTHABS), abs[1].PC)
	})
}

func TestStringInterning(t *testing.T) {
	b := New()
	assert.Equal(t, b.String("x"), b.String("x"))
	assert.Equal(t, lobject.CTB(lobject.TagShortStr), b.Str("short").Tag)
	assert.Equal(t, lobject.CTB(lobject.TagLongStr), b.Str("a string that is definitely longer than forty bytes").Tag)
}

func TestThreadCallLinks(t *testing.T) {
	b := New()
	th := b.MainThread(16)
	fn := th.Push(b.LuaClosure(b.Proto(Func{Lines: []int{1, 2, 3}})))
	ci := th.Call(Frame{Func: fn, PC: 2})
	assert.Equal(t, ci, th.CI())

	r := b.Space().Reader()
	lay := b.Layout.CallInfo
	prev, err := r.Ptr(ci.Add(lay.Previous))
	require.NoError(t, err)
	assert.Equal(t, th.BaseCI(), prev)
	next, err := r.Ptr(th.BaseCI().Add(lay.Next))
	require.NoError(t, err)
	assert.Equal(t, ci, next)
	main, err := r.Ptr(b.G.Add(b.Layout.Global.MainThread))
	require.NoError(t, err)
	assert.Equal(t, th.Addr, main)
}
