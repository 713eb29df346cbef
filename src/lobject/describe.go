package lobject

import (
	"fmt"
	"strconv"
)

// TypeName returns the user facing type name of v, as type() would report it.
func TypeName(v TValue) string {
	return v.Kind().String()
}

// Describe renders v for display. Strings are read from the target and quoted,
// other objects print as "type: address" like tostring does.
func (s *Space) Describe(v TValue) (string, error) {
	val, err := v.Decode()
	if err != nil {
		return "", err
	}
	ref, isRef := val.(Ref)
	if !isRef {
		return val.String(), nil
	}
	switch ref.Tag.Variant() {
	case VariantShortString, VariantLongString:
		str, err := s.AsString(ref)
		if err != nil {
			return "", err
		}
		contents, err := s.GetStr(str)
		if err != nil {
			return "", err
		}
		if str.Len > int64(len(contents)) {
			return strconv.Quote(contents) + "...", nil
		}
		return strconv.Quote(contents), nil
	case VariantLuaClosure:
		return fmt.Sprintf("function: %v", ref.Addr), nil
	case VariantCClosure:
		return fmt.Sprintf("function: builtin: %v", ref.Addr), nil
	default:
		return ref.String(), nil
	}
}
