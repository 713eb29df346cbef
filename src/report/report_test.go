package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/luapeek/src/ldebug"
	"github.com/tanema/luapeek/src/lfake"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

func TestTraceback(t *testing.T) {
	entries := []ldebug.TraceEntry{
		{Level: 0, Debug: &ldebug.Debug{What: "C", ShortSrc: "[C]", CurrentLine: -1}},
		{Level: 1, Debug: &ldebug.Debug{What: "Lua", ShortSrc: "b.lua", CurrentLine: 12, LineDefined: 10, IsTailCall: true}},
		{Level: 2, Debug: &ldebug.Debug{What: "main", ShortSrc: "a.lua", CurrentLine: 3}},
	}
	var buf bytes.Buffer
	Traceback(&buf, entries)
	assert.Equal(t, strings.Join([]string{
		"stack traceback:",
		"\t[C]: in ?",
		"\tb.lua:12: in function <b.lua:10>",
		TailCallMarker,
		"\ta.lua:3: in main chunk",
		"",
	}, "\n"), buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	require.NoError(t, Header(&buf, "", now, "pid 42"))
	assert.Equal(t, "luapeek 0.1.0 | pid 42 | 2024-03-09 14:05:06\n", buf.String())

	buf.Reset()
	require.NoError(t, Header(&buf, "%Y", now, "core"))
	assert.True(t, strings.HasSuffix(buf.String(), "| core | 2024\n"))
}

func TestStack(t *testing.T) {
	var buf bytes.Buffer
	Stack(&buf, []ldebug.Slot{
		{Index: 0, Addr: target.Address(0x1010), Type: "number", Display: "42"},
		{Index: 1, Addr: target.Address(0x1000), Type: "string", Display: `"hi"`},
	})
	out := buf.String()
	assert.Contains(t, out, "0x1010")
	assert.Contains(t, out, `"hi"`)
	assert.Contains(t, out, "TYPE")
}

func TestVariables(t *testing.T) {
	b := lfake.New()
	space := b.Space()
	addr := b.Image.Alloc(b.Layout.TValue.Size)
	b.PutValue(addr, b.Str("value"))
	tv, err := space.TValue(addr)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Variables(&buf, space, []ldebug.Variable{{Index: 1, Name: "greeting", Addr: addr, Value: tv}}))
	assert.Contains(t, buf.String(), "greeting")
	assert.Contains(t, buf.String(), `"value"`)

	bad := lobject.TValue{Tag: lobject.TagTable}
	assert.Error(t, Variables(&buf, space, []ldebug.Variable{{Value: bad}}))
}

func TestThreads(t *testing.T) {
	main := &lobject.Thread{Addr: 0x100}
	var buf bytes.Buffer
	Threads(&buf, []*lobject.Thread{main, {Addr: 0x200}}, main)
	assert.Equal(t, "[m]Thread: 0x100\nThread: 0x200\n", buf.String())
}

func TestTValue(t *testing.T) {
	var buf bytes.Buffer
	TValue(&buf, "number", "1.5")
	assert.Equal(t, "[number][1.5]\n", buf.String())
}
