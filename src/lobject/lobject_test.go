package lobject_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/luapeek/src/lerrors"
	"github.com/tanema/luapeek/src/lfake"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

func tvalue(t *testing.T, b *lfake.Builder, v lfake.Value) lobject.TValue {
	t.Helper()
	addr := b.Image.Alloc(b.Layout.TValue.Size)
	b.PutValue(addr, v)
	tv, err := b.Space().TValue(addr)
	require.NoError(t, err)
	return tv
}

func TestKindStableAcrossVariants(t *testing.T) {
	t.Parallel()
	pairs := [][2]lobject.Tag{
		{lobject.TagInt, lobject.TagFloat},
		{lobject.TagFalse, lobject.TagTrue},
		{lobject.TagShortStr, lobject.TagLongStr},
		{lobject.TagLuaClosure, lobject.TagCClosure},
		{lobject.TagLuaClosure, lobject.TagLightCFunc},
		{lobject.TagNil, lobject.TagEmpty},
	}
	for i, pair := range pairs {
		assert.Equal(t, pair[0].Kind(), pair[1].Kind(), "[%v]", i)
		assert.Equal(t, pair[0].Kind(), lobject.CTB(pair[1]).Kind(), "[%v]", i)
		assert.NotEqual(t, pair[0], pair[1], "[%v]", i)
	}
	assert.Equal(t, lobject.KindNumber, lobject.TagFloat.Kind())
	assert.Equal(t, lobject.TagCClosure, lobject.CTB(lobject.TagCClosure).WithVariant())
	assert.True(t, lobject.CTB(lobject.TagTable).Collectable())
	assert.False(t, lobject.TagTable.Collectable())
	assert.Equal(t, lobject.TagCClosure, lobject.MakeVariant(lobject.KindFunction, 2))
}

func TestDecode(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	str := b.Str("hello")
	tests := []struct {
		in  lfake.Value
		out lobject.Value
	}{
		{lfake.Nil(), lobject.Nil{}},
		{lfake.Value{Tag: lobject.TagEmpty}, lobject.Nil{}},
		{lfake.Bool(true), lobject.Boolean(true)},
		{lfake.Bool(false), lobject.Boolean(false)},
		{lfake.Int(-42), lobject.Integer(-42)},
		{lfake.Float(1.5), lobject.Float(1.5)},
		{lfake.LightUserData(0x1234), lobject.LightUserData(0x1234)},
		{lfake.LightC(0x4000), lobject.LightCFunction(0x4000)},
		{str, lobject.Ref{Addr: str.Addr(), Tag: lobject.CTB(lobject.TagShortStr)}},
	}
	for i, test := range tests {
		val, err := tvalue(t, b, test.in).Decode()
		require.NoError(t, err, "[%v]", i)
		assert.Equal(t, test.out, val, "[%v]", i)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	_, err := tvalue(t, b, lfake.Value{Tag: lobject.TagTable, Raw: 0x1000}).Decode()
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
	_, err = tvalue(t, b, lfake.Value{Tag: 0x3F}).Decode()
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
}

func TestNoneIsNotAReference(t *testing.T) {
	assert.Equal(t, lobject.KindNone, lobject.NoValue.Kind())
	_, isRef := lobject.NoValue.(lobject.Ref)
	assert.False(t, isRef)
	assert.Equal(t, "no value", lobject.NoValue.String())
}

func TestFloatString(t *testing.T) {
	tests := map[float64]string{
		1:            "1.0",
		1.5:          "1.5",
		-0.25:        "-0.25",
		1e100:        "1e+100",
		math.Inf(1):  "inf",
		math.Inf(-1): "-inf",
	}
	for in, out := range tests {
		assert.Equal(t, out, lobject.Float(in).String(), "[%v]", in)
	}
}

func TestAsString(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	space := b.Space()
	long := "a long string of more than forty characters, stored separately"
	for _, s := range []string{"", "short", long} {
		v := b.Str(s)
		str, err := space.AsString(lobject.Ref{Addr: v.Addr(), Tag: v.Tag})
		require.NoError(t, err, "[%v]", s)
		assert.Equal(t, int64(len(s)), str.Len, "[%v]", s)
		assert.Equal(t, len(s) <= 40, str.IsShort(), "[%v]", s)
		contents, err := space.GetStr(str)
		require.NoError(t, err)
		assert.Equal(t, s, contents)
	}
}

func TestClassifierMismatch(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	space := b.Space()
	str := b.Str("not a table")
	ref := lobject.Ref{Addr: str.Addr()}

	_, err := space.AsTable(ref)
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
	_, err = space.AsLuaClosure(ref)
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
	_, err = space.AsProto(ref)
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
	_, err = space.AsThread(ref)
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
	_, err = space.AsString(lobject.Ref{})
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))

	// a reference claiming a different variant than its header
	_, err = space.AsString(lobject.Ref{Addr: str.Addr(), Tag: lobject.CTB(lobject.TagTable)})
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))

	_, err = space.AsTable(lobject.Ref{Addr: 0x10})
	assert.True(t, lerrors.Is(err, lerrors.ReadFailure))
}

func TestAsClosure(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	space := b.Space()
	proto := b.Proto(lfake.Func{Source: "@a.lua", Upvalues: []string{"x"}})
	lcl := b.LuaClosure(proto, b.UpVal(lfake.Int(7)))
	ccl := b.CClosure(0x5000, lfake.Int(1), lfake.Int(2))

	cl, err := space.AsClosure(tvalue(t, b, lcl))
	require.NoError(t, err)
	require.IsType(t, &lobject.LClosure{}, cl)
	assert.True(t, cl.IsLua())
	assert.Equal(t, 1, cl.NUpvalues())
	assert.Equal(t, proto, cl.(*lobject.LClosure).P)

	uv, err := space.UpValAt(cl.(*lobject.LClosure), 0)
	require.NoError(t, err)
	assert.True(t, space.IsClosed(uv))
	val, err := space.TValue(uv.V)
	require.NoError(t, err)
	decoded, err := val.Decode()
	require.NoError(t, err)
	assert.Equal(t, lobject.Integer(7), decoded)

	cl, err = space.AsClosure(tvalue(t, b, ccl))
	require.NoError(t, err)
	require.IsType(t, &lobject.CClosure{}, cl)
	assert.False(t, cl.IsLua())
	assert.Equal(t, 2, cl.NUpvalues())
	assert.Equal(t, target.Address(0x5000), cl.(*lobject.CClosure).F)
	second, err := space.TValue(space.UpvalueAt(cl.(*lobject.CClosure), 1))
	require.NoError(t, err)
	decoded, err = second.Decode()
	require.NoError(t, err)
	assert.Equal(t, lobject.Integer(2), decoded)

	cl, err = space.AsClosure(tvalue(t, b, lfake.LightC(0x6000)))
	require.NoError(t, err)
	assert.Equal(t, lobject.LightCFunction(0x6000), cl)
	assert.Equal(t, 0, cl.NUpvalues())

	_, err = space.AsClosure(tvalue(t, b, lfake.Int(1)))
	assert.True(t, lerrors.Is(err, lerrors.TypeMismatch))
}

func TestAsProto(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	space := b.Space()
	addr := b.Proto(lfake.Func{
		Source:          "@test.lua",
		LineDefined:     3,
		LastLineDefined: 9,
		NumParams:       2,
		IsVararg:        true,
		Lines:           []int{4, 5, 200},
		Locals:          []lfake.Local{{Name: "a", StartPC: 0, EndPC: 3}},
		Upvalues:        []string{"_ENV", ""},
	})
	p, err := space.AsProto(lobject.Ref{Addr: addr})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), p.NumParams)
	assert.True(t, p.IsVararg)
	assert.Equal(t, int32(3), p.LineDefined)
	assert.Equal(t, int32(9), p.LastLineDefined)
	assert.Equal(t, int32(3), p.SizeLineInfo)
	assert.Equal(t, int32(1), p.SizeAbsLineInfo)
	assert.Equal(t, int32(2), p.SizeUpvalues)

	src, err := space.SourceOf(p)
	require.NoError(t, err)
	assert.Equal(t, "@test.lua", src)

	d, err := space.LineDelta(p, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d)
	abs, err := space.AbsLineInfoAt(p, 0)
	require.NoError(t, err)
	assert.Equal(t, lobject.AbsLineInfo{PC: 2, Line: 200}, abs)

	loc, err := space.LocVarAt(p, 0)
	require.NoError(t, err)
	name, err := space.StringAt(loc.VarName)
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	assert.Equal(t, int32(3), loc.EndPC)

	desc, err := space.UpvaldescAt(p, 1)
	require.NoError(t, err)
	assert.True(t, desc.Name.IsNil())

	noSrc, err := space.AsProto(lobject.Ref{Addr: b.Proto(lfake.Func{})})
	require.NoError(t, err)
	src, err = space.SourceOf(noSrc)
	require.NoError(t, err)
	assert.Equal(t, "=?", src)
	assert.True(t, noSrc.LineInfo.IsNil())
}

func TestObjects(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	space := b.Space()

	tbl := b.Table()
	_, err := space.AsTable(lobject.Ref{Addr: tbl.Addr(), Tag: tbl.Tag})
	assert.NoError(t, err)

	ud := b.UserData(24)
	u, err := space.AsUserData(lobject.Ref{Addr: ud.Addr(), Tag: ud.Tag})
	require.NoError(t, err)
	assert.Equal(t, uint64(24), u.Len)

	th := b.Thread(8)
	thread, err := space.AsThread(lobject.Ref{Addr: th.Addr})
	require.NoError(t, err)
	assert.Equal(t, th.Stack, thread.Stack)
	assert.Equal(t, th.BaseCI(), thread.BaseCI)
	assert.Equal(t, th.BaseCI(), thread.CI)
	assert.Equal(t, b.G, thread.G)

	hdr, err := space.Header(th.Addr)
	require.NoError(t, err)
	assert.Equal(t, lobject.TagThread, hdr.Tag)
	assert.Equal(t, ud.Addr(), hdr.Next)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	b := lfake.New()
	space := b.Space()
	tbl := b.Table()
	lcl := b.LuaClosure(b.Proto(lfake.Func{}))
	tests := []struct {
		in  lfake.Value
		out string
	}{
		{lfake.Nil(), "nil"},
		{lfake.Bool(true), "true"},
		{lfake.Int(12), "12"},
		{lfake.Float(2), "2.0"},
		{b.Str("hi\n"), `"hi\n"`},
		{tbl, fmt.Sprintf("table: %v", tbl.Addr())},
		{lcl, fmt.Sprintf("function: %v", lcl.Addr())},
	}
	for i, test := range tests {
		tv := tvalue(t, b, test.in)
		out, err := space.Describe(tv)
		require.NoError(t, err, "[%v]", i)
		assert.Equal(t, test.out, out, "[%v]", i)
	}
	assert.Equal(t, "table", lobject.TypeName(tvalue(t, b, tbl)))
	assert.Equal(t, "number", lobject.TypeName(tvalue(t, b, lfake.Float(1))))
}
