// Package lfake lays out synthetic Lua 5.4 interpreter structures in a
// target.Image so that the inspector can be exercised without a live process.
// Every structure is written with the same layout the inspector reads, so a
// Builder and a lobject.Space over its image always agree.
package lfake

import (
	"math"

	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/layout"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

// maxShortLen is LUAI_MAXSHORTLEN, longer strings are built as long strings.
const maxShortLen = 40

type (
	// Builder allocates interpreter objects in an image.
	Builder struct {
		Image  *target.Image
		Layout *layout.Layout
		G      target.Address
		allgc  target.Address
		strs   map[string]target.Address
		code   map[target.Address]target.Address
	}
	// Value is a tagged value to be stored somewhere in the image.
	Value struct {
		Tag lobject.Tag
		Raw uint64
	}
	// Local declares a local variable live for pc in [StartPC, EndPC).
	Local struct {
		Name    string
		StartPC int
		EndPC   int
	}
	// Func describes a prototype. Lines holds the source line of every
	// instruction, a nil Lines leaves the prototype without line information.
	// An empty Source leaves the source pointer NULL and an empty upvalue name
	// leaves that name NULL.
	Func struct {
		Source          string
		LineDefined     int
		LastLineDefined int
		NumParams       int
		IsVararg        bool
		MaxStackSize    int
		Code            int
		Lines           []int
		Locals          []Local
		Upvalues        []string
	}
)

// New creates a builder over an empty image with the default layout and an
// allocated global state.
func New() *Builder {
	lay := layout.Default()
	b := &Builder{
		Image:  target.NewImage(lay.ByteOrder()),
		Layout: lay,
		strs:   map[string]target.Address{},
		code:   map[target.Address]target.Address{},
	}
	b.G = b.Image.Alloc(lay.Global.Size)
	return b
}

// Space returns a Space reading this builder's image.
func (b *Builder) Space() *lobject.Space {
	return lobject.NewSpace(b.Image, b.Layout)
}

// Nil is the nil value.
func Nil() Value { return Value{Tag: lobject.TagNil} }

// Int is an integer value.
func Int(i int64) Value { return Value{Tag: lobject.TagInt, Raw: uint64(i)} }

// Float is a float value.
func Float(f float64) Value { return Value{Tag: lobject.TagFloat, Raw: math.Float64bits(f)} }

// Bool is a boolean value.
func Bool(v bool) Value {
	if v {
		return Value{Tag: lobject.TagTrue}
	}
	return Value{Tag: lobject.TagFalse}
}

// LightUserData is a bare pointer value.
func LightUserData(addr target.Address) Value {
	return Value{Tag: lobject.TagLightUserData, Raw: uint64(addr)}
}

// LightC is a light C function value.
func LightC(fn target.Address) Value {
	return Value{Tag: lobject.TagLightCFunc, Raw: uint64(fn)}
}

// Object is a collectable value of exact tag tag pointing at addr.
func Object(tag lobject.Tag, addr target.Address) Value {
	return Value{Tag: lobject.CTB(tag), Raw: uint64(addr)}
}

// Addr is the object pointer held by v.
func (v Value) Addr() target.Address { return target.Address(v.Raw) }

// PutValue stores v as a tagged value at addr.
func (b *Builder) PutValue(addr target.Address, v Value) {
	lay := b.Layout.TValue
	b.Image.PutU64(addr.Add(lay.Value), v.Raw)
	b.Image.PutU8(addr.Add(lay.Tag), uint8(v.Tag))
}

// SetRegistry stores v as the registry of the global state.
func (b *Builder) SetRegistry(v Value) {
	b.PutValue(b.G.Add(b.Layout.Global.Registry), v)
}

// object allocates a collectable object and links it at the head of allgc.
func (b *Builder) object(size int64, tag lobject.Tag) target.Address {
	addr := b.alloc(size, tag)
	b.Image.PutPtr(addr.Add(b.Layout.GCObject.Next), b.allgc)
	b.allgc = addr
	b.Image.PutPtr(b.G.Add(b.Layout.Global.AllGC), addr)
	return addr
}

// alloc allocates an object header that is not part of allgc.
func (b *Builder) alloc(size int64, tag lobject.Tag) target.Address {
	addr := b.Image.Alloc(size)
	b.Image.PutU8(addr.Add(b.Layout.GCObject.Tag), uint8(tag))
	return addr
}

// String interns s and returns the address of its string object.
func (b *Builder) String(s string) target.Address {
	if addr, ok := b.strs[s]; ok {
		return addr
	}
	lay := b.Layout.TString
	tag := lobject.TagShortStr
	if len(s) > maxShortLen {
		tag = lobject.TagLongStr
	}
	addr := b.object(lay.Contents+int64(len(s))+1, tag)
	if tag == lobject.TagShortStr {
		b.Image.PutU8(addr.Add(lay.ShrLen), uint8(len(s)))
	} else {
		b.Image.PutU64(addr.Add(lay.LngLen), uint64(len(s)))
	}
	b.Image.Put(addr.Add(lay.Contents), []byte(s))
	b.strs[s] = addr
	return addr
}

// Str is a string value holding s.
func (b *Builder) Str(s string) Value {
	addr := b.String(s)
	if len(s) > maxShortLen {
		return Object(lobject.TagLongStr, addr)
	}
	return Object(lobject.TagShortStr, addr)
}

// Table allocates an empty table.
func (b *Builder) Table() Value {
	return Object(lobject.TagTable, b.object(b.Layout.Table.Size, lobject.TagTable))
}

// UserData allocates a full userdata with a payload of size bytes.
func (b *Builder) UserData(size int) Value {
	lay := b.Layout.UData
	addr := b.object(lay.Metatable+b.Layout.PointerSize+int64(size), lobject.TagUserData)
	b.Image.PutU64(addr.Add(lay.Len), uint64(size))
	return Object(lobject.TagUserData, addr)
}

// Proto lays out the prototype described by fn.
func (b *Builder) Proto(fn Func) target.Address {
	lay := b.Layout.Proto
	img := b.Image
	addr := b.object(lay.Size, lobject.TagProto)
	img.PutU8(addr.Add(lay.NumParams), uint8(fn.NumParams))
	if fn.IsVararg {
		img.PutU8(addr.Add(lay.IsVararg), 1)
	}
	img.PutU8(addr.Add(lay.MaxStackSize), uint8(max(fn.MaxStackSize, 2)))
	img.PutI32(addr.Add(lay.LineDefined), int32(fn.LineDefined))
	img.PutI32(addr.Add(lay.LastLineDefined), int32(fn.LastLineDefined))
	if fn.Source != "" {
		img.PutPtr(addr.Add(lay.Source), b.String(fn.Source))
	}

	ncode := max(fn.Code, len(fn.Lines), 1)
	code := img.Alloc(int64(ncode) * b.Layout.InstructionSize)
	img.PutPtr(addr.Add(lay.Code), code)
	img.PutI32(addr.Add(lay.SizeCode), int32(ncode))
	b.code[addr] = code

	if fn.Lines != nil {
		deltas, abs := EncodeLines(fn.LineDefined, fn.Lines)
		lineinfo := img.Alloc(int64(len(deltas)))
		for pc, d := range deltas {
			img.PutU8(lineinfo.Add(int64(pc)), uint8(d))
		}
		img.PutPtr(addr.Add(lay.LineInfo), lineinfo)
		img.PutI32(addr.Add(lay.SizeLineInfo), int32(len(deltas)))
		if len(abs) > 0 {
			alay := b.Layout.AbsLineInfo
			arr := img.Alloc(int64(len(abs)) * alay.Size)
			for i, a := range abs {
				entry := arr.Index(int64(i), alay.Size)
				img.PutI32(entry.Add(alay.PC), a.PC)
				img.PutI32(entry.Add(alay.Line), a.Line)
			}
			img.PutPtr(addr.Add(lay.AbsLineInfo), arr)
			img.PutI32(addr.Add(lay.SizeAbsLineInfo), int32(len(abs)))
		}
	}

	if len(fn.Locals) > 0 {
		llay := b.Layout.LocVar
		arr := img.Alloc(int64(len(fn.Locals)) * llay.Size)
		for i, loc := range fn.Locals {
			entry := arr.Index(int64(i), llay.Size)
			img.PutPtr(entry.Add(llay.VarName), b.String(loc.Name))
			img.PutI32(entry.Add(llay.StartPC), int32(loc.StartPC))
			img.PutI32(entry.Add(llay.EndPC), int32(loc.EndPC))
		}
		img.PutPtr(addr.Add(lay.LocVars), arr)
		img.PutI32(addr.Add(lay.SizeLocVars), int32(len(fn.Locals)))
	}

	if len(fn.Upvalues) > 0 {
		ulay := b.Layout.Upvaldesc
		arr := img.Alloc(int64(len(fn.Upvalues)) * ulay.Size)
		for i, name := range fn.Upvalues {
			if name != "" {
				img.PutPtr(arr.Index(int64(i), ulay.Size).Add(ulay.Name), b.String(name))
			}
		}
		img.PutPtr(addr.Add(lay.Upvalues), arr)
		img.PutI32(addr.Add(lay.SizeUpvalues), int32(len(fn.Upvalues)))
	}
	return addr
}

// EncodeLines builds the delta and checkpoint tables for lines the way the
// compiler does: a checkpoint is saved when a delta does not fit in a byte or
// after conf.MAXIWTHABS instructions without one.
func EncodeLines(linedefined int, lines []int) ([]int8, []lobject.AbsLineInfo) {
	deltas := make([]int8, len(lines))
	var abs []lobject.AbsLineInfo
	previous, iwthabs := linedefined, 0
	for pc, line := range lines {
		linedif := line - previous
		if linedif >= conf.LIMLINEDIFF || linedif <= -conf.LIMLINEDIFF || iwthabs >= conf.MAXIWTHABS {
			abs = append(abs, lobject.AbsLineInfo{PC: int32(pc), Line: int32(line)})
			linedif = conf.ABSLINEINFO
			iwthabs = 1
		} else {
			iwthabs++
		}
		deltas[pc] = int8(linedif)
		previous = line
	}
	return deltas, abs
}

// UpVal allocates a closed upvalue box holding v.
func (b *Builder) UpVal(v Value) target.Address {
	lay := b.Layout.UpVal
	addr := b.object(lay.Size, lobject.TagUpVal)
	b.Image.PutPtr(addr.Add(lay.V), addr.Add(lay.Value))
	b.PutValue(addr.Add(lay.Value), v)
	return addr
}

// OpenUpVal allocates an upvalue box still pointing at a stack slot.
func (b *Builder) OpenUpVal(slot target.Address) target.Address {
	lay := b.Layout.UpVal
	addr := b.object(lay.Size, lobject.TagUpVal)
	b.Image.PutPtr(addr.Add(lay.V), slot)
	return addr
}

// LuaClosure allocates a closure over proto with the given upvalue boxes.
func (b *Builder) LuaClosure(proto target.Address, upvals ...target.Address) Value {
	lay := b.Layout.Closure
	ptr := b.Layout.PointerSize
	addr := b.object(lay.UpVals+ptr*int64(max(len(upvals), 1)), lobject.TagLuaClosure)
	b.Image.PutU8(addr.Add(lay.NUpvalues), uint8(len(upvals)))
	b.Image.PutPtr(addr.Add(lay.P), proto)
	for i, uv := range upvals {
		b.Image.PutPtr(addr.Add(lay.UpVals).Index(int64(i), ptr), uv)
	}
	return Object(lobject.TagLuaClosure, addr)
}

// CClosure allocates a native closure over fn with inline upvalues.
func (b *Builder) CClosure(fn target.Address, upvalues ...Value) Value {
	lay := b.Layout.Closure
	size := b.Layout.TValue.Size
	addr := b.object(lay.Upvalue+size*int64(max(len(upvalues), 1)), lobject.TagCClosure)
	b.Image.PutU8(addr.Add(lay.NUpvalues), uint8(len(upvalues)))
	b.Image.PutPtr(addr.Add(lay.F), fn)
	for i, v := range upvalues {
		b.PutValue(addr.Add(lay.Upvalue).Index(int64(i), size), v)
	}
	return Object(lobject.TagCClosure, addr)
}
