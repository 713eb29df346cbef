package lobject

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tanema/luapeek/src/lerrors"
	"github.com/tanema/luapeek/src/target"
)

type (
	// Value is a decoded tagged value: a scalar, or a reference to a collectable
	// object that must be classified before its fields can be read.
	Value interface {
		fmt.Stringer
		Kind() Kind
	}
	// None is the absence of a value, as found past the top of a stack.
	None struct{}
	// Nil is nil.
	Nil struct{}
	// Boolean is true or false.
	Boolean bool
	// Integer is a lua_Integer.
	Integer int64
	// Float is a lua_Number.
	Float float64
	// LightUserData is a bare pointer value.
	LightUserData target.Address
	// LightCFunction is a native function stored without a closure.
	LightCFunction target.Address
	// Ref points to a collectable object. Tag is the exact tag it was found with.
	Ref struct {
		Addr target.Address
		Tag  Tag
	}
	// TValue is a tagged value read from the target: its address, tag and payload.
	TValue struct {
		Addr target.Address
		Tag  Tag
		Raw  uint64
		Ptr  target.Address
	}
)

// NoValue is the sentinel for slots that hold no value at all.
var NoValue Value = None{}

// Kind implements Value.
func (None) Kind() Kind { return KindNone }

// Kind implements Value.
func (Nil) Kind() Kind { return KindNil }

// Kind implements Value.
func (Boolean) Kind() Kind { return KindBoolean }

// Kind implements Value.
func (Integer) Kind() Kind { return KindNumber }

// Kind implements Value.
func (Float) Kind() Kind { return KindNumber }

// Kind implements Value.
func (LightUserData) Kind() Kind { return KindLightUserData }

// Kind implements Value.
func (LightCFunction) Kind() Kind { return KindFunction }

// Kind implements Value.
func (r Ref) Kind() Kind { return r.Tag.Kind() }

func (None) String() string      { return "no value" }
func (Nil) String() string       { return "nil" }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (p LightUserData) String() string {
	return fmt.Sprintf("userdata: %v", target.Address(p))
}

func (f LightCFunction) String() string {
	return fmt.Sprintf("function: builtin: %v", target.Address(f))
}

func (r Ref) String() string {
	return fmt.Sprintf("%v: %v", r.Tag.Kind(), r.Addr)
}

// String formats like lua_Number with "%.14g", keeping a ".0" on integral values.
func (f Float) String() string {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		if math.Signbit(v) {
			return "-nan"
		}
		return "nan"
	}
	str := strconv.FormatFloat(v, 'g', 14, 64)
	if _, err := strconv.ParseInt(str, 10, 64); err == nil {
		str += ".0"
	}
	return str
}

// Kind strips variant and collectable bits from the tag.
func (v TValue) Kind() Kind { return v.Tag.Kind() }

// FullTag strips only the collectable bit, for exact variant matching.
func (v TValue) FullTag() Tag { return v.Tag.WithVariant() }

// IsCollectable tests the collectable bit.
func (v TValue) IsCollectable() bool { return v.Tag.Collectable() }

// IsLuaClosure reports whether v holds a closure over a prototype.
func (v TValue) IsLuaClosure() bool { return v.Tag == CTB(TagLuaClosure) }

// IsCClosure reports whether v holds a native closure.
func (v TValue) IsCClosure() bool { return v.Tag == CTB(TagCClosure) }

// IsClosure reports whether v holds either closure kind.
func (v TValue) IsClosure() bool { return v.IsLuaClosure() || v.IsCClosure() }

// Decode extracts the scalar held by v or a reference to the object it points
// to. A collectable variant without the collectable bit is a TypeMismatch.
func (v TValue) Decode() (Value, error) {
	variant := v.Tag.Variant()
	if variant.Collectable() {
		if !v.IsCollectable() {
			return nil, lerrors.New(lerrors.TypeMismatch, uint64(v.Addr), "%v without collectable bit", v.Tag)
		}
		return Ref{Addr: v.Ptr, Tag: v.Tag}, nil
	}
	switch variant {
	case VariantNil:
		return Nil{}, nil
	case VariantBoolean:
		return Boolean(v.FullTag() == TagTrue), nil
	case VariantInteger:
		return Integer(int64(v.Raw)), nil
	case VariantFloat:
		return Float(math.Float64frombits(v.Raw)), nil
	case VariantLightUserData:
		return LightUserData(v.Ptr), nil
	case VariantNativeFunction:
		return LightCFunction(v.Ptr), nil
	default:
		return nil, lerrors.New(lerrors.TypeMismatch, uint64(v.Addr), "unknown tag %v", v.Tag)
	}
}
