// Package lobject decodes the tagged values and garbage collected objects of a
// Lua 5.4 interpreter from target memory. Every type here is a borrowed view: it
// holds addresses and scalars copied out of a paused snapshot and owns nothing.
package lobject

import "fmt"

type (
	// Kind is the basic type of a value, the low four bits of its tag.
	Kind int8
	// Tag is the raw type tag byte of a tagged value. Bits 0-3 hold the kind, bits
	// 4-5 the variant and bit 6 marks collectable values.
	Tag uint8
	// Variant names every concrete representation a tag can select.
	Variant int
)

const (
	// KindNone is the kind of an absent value, it never appears in memory.
	KindNone Kind = iota - 1
	// KindNil is nil.
	KindNil
	// KindBoolean is true or false.
	KindBoolean
	// KindLightUserData is a bare pointer.
	KindLightUserData
	// KindNumber is an integer or a float.
	KindNumber
	// KindString is a short or long string.
	KindString
	// KindTable is a table.
	KindTable
	// KindFunction is any function variant.
	KindFunction
	// KindUserData is a full userdata.
	KindUserData
	// KindThread is a coroutine.
	KindThread
	// KindUpVal is an upvalue box, never a first class value.
	KindUpVal
	// KindProto is a function prototype, never a first class value.
	KindProto
	// KindDeadKey marks a dead table key.
	KindDeadKey
)

const (
	// BitCollectable marks values whose payload points into the collected heap.
	BitCollectable Tag = 1 << 6
	kindMask       Tag = 0x0F
	variantMask    Tag = 0x3F
)

// Exact tags with their variant bits, without the collectable bit.
const (
	TagNil           = Tag(KindNil)
	TagEmpty         = Tag(KindNil) | 1<<4
	TagAbsentKey     = Tag(KindNil) | 2<<4
	TagFalse         = Tag(KindBoolean)
	TagTrue          = Tag(KindBoolean) | 1<<4
	TagLightUserData = Tag(KindLightUserData)
	TagInt           = Tag(KindNumber)
	TagFloat         = Tag(KindNumber) | 1<<4
	TagShortStr      = Tag(KindString)
	TagLongStr       = Tag(KindString) | 1<<4
	TagTable         = Tag(KindTable)
	TagLuaClosure    = Tag(KindFunction)
	TagLightCFunc    = Tag(KindFunction) | 1<<4
	TagCClosure      = Tag(KindFunction) | 2<<4
	TagUserData      = Tag(KindUserData)
	TagThread        = Tag(KindThread)
	TagUpVal         = Tag(KindUpVal)
	TagProto         = Tag(KindProto)
)

const (
	// VariantInvalid is a tag that does not name any known representation.
	VariantInvalid Variant = iota
	// VariantNil is nil, including empty slots and absent keys.
	VariantNil
	// VariantBoolean is true or false.
	VariantBoolean
	// VariantInteger is a lua_Integer.
	VariantInteger
	// VariantFloat is a lua_Number.
	VariantFloat
	// VariantShortString is an interned string.
	VariantShortString
	// VariantLongString is a string with a separately stored length.
	VariantLongString
	// VariantTable is a table.
	VariantTable
	// VariantLuaClosure is a closure over a prototype.
	VariantLuaClosure
	// VariantCClosure is a native function with upvalues.
	VariantCClosure
	// VariantNativeFunction is a bare native function pointer.
	VariantNativeFunction
	// VariantLightUserData is a bare pointer.
	VariantLightUserData
	// VariantUserData is a full userdata.
	VariantUserData
	// VariantThread is a coroutine.
	VariantThread
	// VariantProto is a function prototype.
	VariantProto
	// VariantUpVal is an upvalue box.
	VariantUpVal
)

var kindNames = map[Kind]string{
	KindNone:          "no value",
	KindNil:           "nil",
	KindBoolean:       "boolean",
	KindLightUserData: "userdata",
	KindNumber:        "number",
	KindString:        "string",
	KindTable:         "table",
	KindFunction:      "function",
	KindUserData:      "userdata",
	KindThread:        "thread",
	KindUpVal:         "upvalue",
	KindProto:         "proto",
	KindDeadKey:       "deadkey",
}

var variantNames = [...]string{
	VariantInvalid:        "invalid",
	VariantNil:            "nil",
	VariantBoolean:        "boolean",
	VariantInteger:        "integer",
	VariantFloat:          "float",
	VariantShortString:    "short string",
	VariantLongString:     "long string",
	VariantTable:          "table",
	VariantLuaClosure:     "Lua closure",
	VariantCClosure:       "C closure",
	VariantNativeFunction: "light C function",
	VariantLightUserData:  "light userdata",
	VariantUserData:       "userdata",
	VariantThread:         "thread",
	VariantProto:          "proto",
	VariantUpVal:          "upvalue",
}

// MakeVariant builds the tag of variant v of kind k.
func MakeVariant(k Kind, v uint8) Tag {
	return Tag(k) | Tag(v<<4)
}

// CTB marks a tag as collectable.
func CTB(t Tag) Tag {
	return t | BitCollectable
}

// Kind strips the variant and collectable bits.
func (t Tag) Kind() Kind {
	return Kind(t & kindMask)
}

// WithVariant strips only the collectable bit.
func (t Tag) WithVariant() Tag {
	return t & variantMask
}

// Collectable reports whether the collectable bit is set.
func (t Tag) Collectable() bool {
	return t&BitCollectable != 0
}

// Variant maps the tag to the representation it selects.
func (t Tag) Variant() Variant {
	switch t.WithVariant() {
	case TagNil, TagEmpty, TagAbsentKey:
		return VariantNil
	case TagFalse, TagTrue:
		return VariantBoolean
	case TagInt:
		return VariantInteger
	case TagFloat:
		return VariantFloat
	case TagShortStr:
		return VariantShortString
	case TagLongStr:
		return VariantLongString
	case TagTable:
		return VariantTable
	case TagLuaClosure:
		return VariantLuaClosure
	case TagLightCFunc:
		return VariantNativeFunction
	case TagCClosure:
		return VariantCClosure
	case TagLightUserData:
		return VariantLightUserData
	case TagUserData:
		return VariantUserData
	case TagThread:
		return VariantThread
	case TagProto:
		return VariantProto
	case TagUpVal:
		return VariantUpVal
	default:
		return VariantInvalid
	}
}

func (t Tag) String() string {
	return fmt.Sprintf("%v(0x%02x)", t.Variant(), uint8(t))
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int8(k))
}

// Collectable reports whether values of this variant live in the collected heap.
func (v Variant) Collectable() bool {
	switch v {
	case VariantShortString, VariantLongString, VariantTable, VariantLuaClosure,
		VariantCClosure, VariantUserData, VariantThread, VariantProto, VariantUpVal:
		return true
	default:
		return false
	}
}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return variantNames[VariantInvalid]
	}
	return variantNames[v]
}
