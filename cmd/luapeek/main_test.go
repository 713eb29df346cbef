package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/luapeek/src/lfake"
)

func TestSessionAttach(t *testing.T) {
	cfg.cacheSize = 8
	b := lfake.New()
	th := b.MainThread(8)
	fn := th.Push(b.LuaClosure(b.Proto(lfake.Func{Source: "@main.lua", Lines: []int{1}})))
	th.Call(lfake.Frame{Func: fn})

	sess, err := newSession(b.Image, b.Layout, "test image", nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, sess.Close()) }()

	L, err := sess.attach(th.Addr.String())()
	require.NoError(t, err)
	assert.Equal(t, th.Addr, L.Thread().Addr)
	assert.Positive(t, sess.cache.Len())
	sess.refresh()
	assert.Equal(t, 0, sess.cache.Len())

	_, err = sess.attach("nothex")()
	assert.Error(t, err)

	var out bytes.Buffer
	require.NoError(t, sess.dumpMetrics(&out))
	assert.Contains(t, out.String(), "luapeek_target_reads_total")
	assert.Contains(t, out.String(), "luapeek_cache_pages")
}

func TestCheckError(t *testing.T) {
	assert.Equal(t, 0, checkError(nil))
	assert.Equal(t, 1, checkError(assert.AnError))
}
