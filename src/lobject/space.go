package lobject

import (
	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/layout"
	"github.com/tanema/luapeek/src/lerrors"
	"github.com/tanema/luapeek/src/target"
)

type (
	// Space ties target memory to the struct layout of the interpreter build that
	// owns it. All object views are produced through a Space and are only valid
	// for the snapshot it reads.
	Space struct {
		r   *target.Reader
		lay *layout.Layout
	}
	// Header is the common header of a collectable object.
	Header struct {
		Addr   target.Address
		Next   target.Address
		Tag    Tag
		Marked uint8
	}
)

// NewSpace creates a Space reading mem with the given layout.
func NewSpace(mem target.Memory, lay *layout.Layout) *Space {
	return &Space{
		r:   target.NewReader(mem, lay.ByteOrder(), lay.PointerSize),
		lay: lay,
	}
}

// Reader returns the typed reader over target memory.
func (s *Space) Reader() *target.Reader { return s.r }

// Layout returns the struct layout in use.
func (s *Space) Layout() *layout.Layout { return s.lay }

// TValue reads the tagged value stored at addr.
func (s *Space) TValue(addr target.Address) (TValue, error) {
	lay := s.lay.TValue
	tt, err := s.r.U8(addr.Add(lay.Tag))
	if err != nil {
		return TValue{}, err
	}
	raw, err := s.r.U64(addr.Add(lay.Value))
	if err != nil {
		return TValue{}, err
	}
	ptr, err := s.r.Ptr(addr.Add(lay.Value))
	if err != nil {
		return TValue{}, err
	}
	return TValue{Addr: addr, Tag: Tag(tt), Raw: raw, Ptr: ptr}, nil
}

// StackValue returns the address of slot i counted from base.
func (s *Space) StackValue(base target.Address, i int64) target.Address {
	return base.Index(i, s.lay.StackValue.Size)
}

// StackDistance returns the number of stack slots from lo to hi.
func (s *Space) StackDistance(hi, lo target.Address) int64 {
	return (int64(hi) - int64(lo)) / s.lay.StackValue.Size
}

// Header reads the common header of the object at addr.
func (s *Space) Header(addr target.Address) (Header, error) {
	lay := s.lay.GCObject
	next, err := s.r.Ptr(addr.Add(lay.Next))
	if err != nil {
		return Header{}, err
	}
	tt, err := s.r.U8(addr.Add(lay.Tag))
	if err != nil {
		return Header{}, err
	}
	marked, err := s.r.U8(addr.Add(lay.Marked))
	if err != nil {
		return Header{}, err
	}
	return Header{Addr: addr, Next: next, Tag: Tag(tt), Marked: marked}, nil
}

// check reads the header of ref and verifies its tag. With exact unset only the
// kinds have to agree.
func (s *Space) check(ref Ref, want Tag, exact bool) (Header, error) {
	if ref.Addr.IsNil() {
		return Header{}, lerrors.New(lerrors.TypeMismatch, 0, "nil reference, expected %v", want)
	}
	hdr, err := s.Header(ref.Addr)
	if err != nil {
		return Header{}, err
	}
	got := hdr.Tag.WithVariant()
	ok := got == want
	if !exact {
		ok = got.Kind() == want.Kind()
	}
	if ok && ref.Tag != 0 {
		if exact {
			ok = ref.Tag.WithVariant() == got
		} else {
			ok = ref.Tag.Kind() == got.Kind()
		}
	}
	if !ok {
		return hdr, lerrors.New(lerrors.TypeMismatch, uint64(ref.Addr), "expected %v, found %v", want.Variant(), hdr.Tag)
	}
	return hdr, nil
}

// GetStr copies the contents of str out of the target. Strings longer than
// conf.MAXSTRINGLEN are truncated.
func (s *Space) GetStr(str *String) (string, error) {
	n := min(str.Len, conf.MAXSTRINGLEN)
	buf, err := s.r.Bytes(str.Addr.Add(s.lay.TString.Contents), n)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// StringAt classifies the object at addr as a string and returns its contents.
func (s *Space) StringAt(addr target.Address) (string, error) {
	str, err := s.AsString(Ref{Addr: addr})
	if err != nil {
		return "", err
	}
	return s.GetStr(str)
}
