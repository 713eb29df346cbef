// Package layout describes where the interpreter keeps each field of its internal
// structures. A Layout is specific to one interpreter release and one ABI, it is
// loaded from TOML so that other builds can be inspected without recompiling.
package layout

import (
	_ "embed"
	"encoding/binary"
	"os"
	"reflect"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/tanema/luapeek/src/lerrors"
)

//go:embed lua54.toml
var defaultLayout []byte

type (
	// Layout holds the size and field offsets, in bytes, of every interpreter
	// structure the inspector reads.
	Layout struct {
		Name            string      `toml:"name"`
		PointerSize     int64       `toml:"pointer_size"`
		BigEndian       bool        `toml:"big_endian"`
		InstructionSize int64       `toml:"instruction_size"`
		TValue          TValue      `toml:"tvalue"`
		StackValue      StackValue  `toml:"stack_value"`
		GCObject        GCObject    `toml:"gc_object"`
		TString         TString     `toml:"tstring"`
		Table           Table       `toml:"table"`
		UData           UData       `toml:"udata"`
		UpVal           UpVal       `toml:"upval"`
		Closure         Closure     `toml:"closure"`
		Proto           Proto       `toml:"proto"`
		Upvaldesc       Upvaldesc   `toml:"upvaldesc"`
		LocVar          LocVar      `toml:"locvar"`
		AbsLineInfo     AbsLineInfo `toml:"abslineinfo"`
		CallInfo        CallInfo    `toml:"call_info"`
		State           State       `toml:"state"`
		Global          Global      `toml:"global"`
	}
	// TValue is the tagged value: a value union followed by a tag byte.
	TValue struct {
		Size  int64 `toml:"size"`
		Value int64 `toml:"value"`
		Tag   int64 `toml:"tt"`
	}
	// StackValue is one slot of a thread stack.
	StackValue struct {
		Size int64 `toml:"size"`
	}
	// GCObject is the common header of every collectable object.
	GCObject struct {
		Next   int64 `toml:"next"`
		Tag    int64 `toml:"tt"`
		Marked int64 `toml:"marked"`
	}
	// TString is a short or long string.
	TString struct {
		Extra    int64 `toml:"extra"`
		ShrLen   int64 `toml:"shrlen"`
		Hash     int64 `toml:"hash"`
		LngLen   int64 `toml:"lnglen"`
		Contents int64 `toml:"contents"`
	}
	// Table is a Lua table.
	Table struct {
		Size      int64 `toml:"size"`
		Flags     int64 `toml:"flags"`
		LSizeNode int64 `toml:"lsizenode"`
		ALimit    int64 `toml:"alimit"`
		Array     int64 `toml:"array"`
		Node      int64 `toml:"node"`
		Metatable int64 `toml:"metatable"`
	}
	// UData is a full userdata.
	UData struct {
		NUValue   int64 `toml:"nuvalue"`
		Len       int64 `toml:"len"`
		Metatable int64 `toml:"metatable"`
	}
	// UpVal is the box shared by closures capturing the same variable.
	UpVal struct {
		Size  int64 `toml:"size"`
		V     int64 `toml:"v"`
		Value int64 `toml:"value"`
	}
	// Closure covers both closure kinds. F and Upvalue belong to C closures, P and
	// UpVals to Lua closures.
	Closure struct {
		NUpvalues int64 `toml:"nupvalues"`
		F         int64 `toml:"f"`
		Upvalue   int64 `toml:"upvalue"`
		P         int64 `toml:"p"`
		UpVals    int64 `toml:"upvals"`
	}
	// Proto is compiled function metadata.
	Proto struct {
		Size            int64 `toml:"size"`
		NumParams       int64 `toml:"numparams"`
		IsVararg        int64 `toml:"is_vararg"`
		MaxStackSize    int64 `toml:"maxstacksize"`
		SizeUpvalues    int64 `toml:"sizeupvalues"`
		SizeK           int64 `toml:"sizek"`
		SizeCode        int64 `toml:"sizecode"`
		SizeLineInfo    int64 `toml:"sizelineinfo"`
		SizeP           int64 `toml:"sizep"`
		SizeLocVars     int64 `toml:"sizelocvars"`
		SizeAbsLineInfo int64 `toml:"sizeabslineinfo"`
		LineDefined     int64 `toml:"linedefined"`
		LastLineDefined int64 `toml:"lastlinedefined"`
		K               int64 `toml:"k"`
		Code            int64 `toml:"code"`
		P               int64 `toml:"p"`
		Upvalues        int64 `toml:"upvalues"`
		LineInfo        int64 `toml:"lineinfo"`
		AbsLineInfo     int64 `toml:"abslineinfo"`
		LocVars         int64 `toml:"locvars"`
		Source          int64 `toml:"source"`
	}
	// Upvaldesc is a prototype's description of one upvalue.
	Upvaldesc struct {
		Size    int64 `toml:"size"`
		Name    int64 `toml:"name"`
		InStack int64 `toml:"instack"`
		Idx     int64 `toml:"idx"`
		Kind    int64 `toml:"kind"`
	}
	// LocVar is a local variable debug record.
	LocVar struct {
		Size    int64 `toml:"size"`
		VarName int64 `toml:"varname"`
		StartPC int64 `toml:"startpc"`
		EndPC   int64 `toml:"endpc"`
	}
	// AbsLineInfo is an absolute line checkpoint.
	AbsLineInfo struct {
		Size int64 `toml:"size"`
		PC   int64 `toml:"pc"`
		Line int64 `toml:"line"`
	}
	// CallInfo is one activation record.
	CallInfo struct {
		Size       int64 `toml:"size"`
		Func       int64 `toml:"func"`
		Top        int64 `toml:"top"`
		Previous   int64 `toml:"previous"`
		Next       int64 `toml:"next"`
		SavedPC    int64 `toml:"savedpc"`
		Trap       int64 `toml:"trap"`
		NExtraArgs int64 `toml:"nextraargs"`
		FTransfer  int64 `toml:"ftransfer"`
		NTransfer  int64 `toml:"ntransfer"`
		NResults   int64 `toml:"nresults"`
		CallStatus int64 `toml:"callstatus"`
	}
	// State is a thread, lua_State.
	State struct {
		Size      int64 `toml:"size"`
		Status    int64 `toml:"status"`
		NCI       int64 `toml:"nci"`
		Top       int64 `toml:"top"`
		G         int64 `toml:"l_g"`
		CI        int64 `toml:"ci"`
		StackLast int64 `toml:"stack_last"`
		Stack     int64 `toml:"stack"`
		OpenUpval int64 `toml:"openupval"`
		BaseCI    int64 `toml:"base_ci"`
	}
	// Global is the state shared by all threads, global_State.
	Global struct {
		Size       int64 `toml:"size"`
		Registry   int64 `toml:"l_registry"`
		NilValue   int64 `toml:"nilvalue"`
		AllGC      int64 `toml:"allgc"`
		MainThread int64 `toml:"mainthread"`
	}
)

// Default returns the layout of Lua 5.4.6 on LP64 little endian targets.
func Default() *Layout {
	lay, err := Parse(defaultLayout)
	if err != nil {
		panic(err)
	}
	return lay
}

// Load reads a layout from a TOML file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read layout %s", path)
	}
	lay, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "layout %s", path)
	}
	return lay, nil
}

// Parse decodes and validates a TOML layout description.
func Parse(data []byte) (*Layout, error) {
	var lay Layout
	md, err := toml.Decode(string(data), &lay)
	if err != nil {
		return nil, lerrors.Wrap(lerrors.LayoutErr, 0, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, lerrors.New(lerrors.LayoutErr, 0, "unknown keys %v", undecoded)
	}
	if err := lay.Validate(); err != nil {
		return nil, err
	}
	return &lay, nil
}

// Validate checks the layout is usable: sizes must be positive and offsets must
// not be negative.
func (lay *Layout) Validate() error {
	if lay.PointerSize != 4 && lay.PointerSize != 8 {
		return lerrors.New(lerrors.LayoutErr, 0, "pointer_size must be 4 or 8, got %d", lay.PointerSize)
	}
	if lay.InstructionSize <= 0 {
		return lerrors.New(lerrors.LayoutErr, 0, "instruction_size must be positive")
	}
	root := reflect.ValueOf(lay).Elem()
	for i := range root.NumField() {
		section := root.Field(i)
		if section.Kind() != reflect.Struct {
			continue
		}
		name := root.Type().Field(i).Tag.Get("toml")
		for j := range section.NumField() {
			field := section.Type().Field(j)
			val := section.Field(j).Int()
			if field.Name == "Size" && val <= 0 {
				return lerrors.New(lerrors.LayoutErr, 0, "%s.size must be positive", name)
			}
			if val < 0 {
				return lerrors.New(lerrors.LayoutErr, 0, "%s.%s is negative", name, field.Tag.Get("toml"))
			}
		}
	}
	return nil
}

// ByteOrder returns the target byte order.
func (lay *Layout) ByteOrder() binary.ByteOrder {
	if lay.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
