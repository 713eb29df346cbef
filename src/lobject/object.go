package lobject

import (
	"github.com/tanema/luapeek/src/target"
)

type (
	// String is a short or long string object.
	String struct {
		Addr target.Address
		Tag  Tag
		Len  int64
	}
	// Table is a table object. Only the fields needed to print it are read.
	Table struct {
		Addr      target.Address
		Flags     uint8
		LSizeNode uint8
		ALimit    uint32
		Array     target.Address
		Node      target.Address
		Metatable target.Address
	}
	// UserData is a full userdata object.
	UserData struct {
		Addr      target.Address
		NUValue   uint16
		Len       uint64
		Metatable target.Address
	}
	// UpVal is an upvalue box. V points at the captured value, either on a stack
	// while the box is open or at Value once it has been closed.
	UpVal struct {
		Addr target.Address
		V    target.Address
	}
	// Thread is a coroutine and its stack bookkeeping.
	Thread struct {
		Addr      target.Address
		Status    uint8
		NCI       uint16
		Top       target.Address
		G         target.Address
		CI        target.Address
		StackLast target.Address
		Stack     target.Address
		BaseCI    target.Address
	}
)

// IsShort reports whether str is an interned short string.
func (str *String) IsShort() bool { return str.Tag.WithVariant() == TagShortStr }

// IsClosed reports whether the box no longer points into a stack.
func (s *Space) IsClosed(uv *UpVal) bool { return uv.V == uv.Addr.Add(s.lay.UpVal.Value) }

// AsString classifies ref as a string of either variant. The length is read
// from shrlen for short strings and from u.lnglen for long ones.
func (s *Space) AsString(ref Ref) (*String, error) {
	hdr, err := s.check(ref, TagShortStr, false)
	if err != nil {
		return nil, err
	}
	lay := s.lay.TString
	str := &String{Addr: ref.Addr, Tag: hdr.Tag.WithVariant()}
	if str.IsShort() {
		n, err := s.r.U8(ref.Addr.Add(lay.ShrLen))
		if err != nil {
			return nil, err
		}
		str.Len = int64(n)
	} else {
		n, err := s.r.Word(ref.Addr.Add(lay.LngLen))
		if err != nil {
			return nil, err
		}
		str.Len = n
	}
	return str, nil
}

// AsTable classifies ref as a table.
func (s *Space) AsTable(ref Ref) (*Table, error) {
	if _, err := s.check(ref, TagTable, true); err != nil {
		return nil, err
	}
	lay := s.lay.Table
	tbl := &Table{Addr: ref.Addr}
	var err error
	if tbl.Flags, err = s.r.U8(ref.Addr.Add(lay.Flags)); err != nil {
		return nil, err
	}
	if tbl.LSizeNode, err = s.r.U8(ref.Addr.Add(lay.LSizeNode)); err != nil {
		return nil, err
	}
	if tbl.ALimit, err = s.r.U32(ref.Addr.Add(lay.ALimit)); err != nil {
		return nil, err
	}
	if tbl.Array, err = s.r.Ptr(ref.Addr.Add(lay.Array)); err != nil {
		return nil, err
	}
	if tbl.Node, err = s.r.Ptr(ref.Addr.Add(lay.Node)); err != nil {
		return nil, err
	}
	if tbl.Metatable, err = s.r.Ptr(ref.Addr.Add(lay.Metatable)); err != nil {
		return nil, err
	}
	return tbl, nil
}

// AsUserData classifies ref as a full userdata.
func (s *Space) AsUserData(ref Ref) (*UserData, error) {
	if _, err := s.check(ref, TagUserData, true); err != nil {
		return nil, err
	}
	lay := s.lay.UData
	ud := &UserData{Addr: ref.Addr}
	var err error
	if ud.NUValue, err = s.r.U16(ref.Addr.Add(lay.NUValue)); err != nil {
		return nil, err
	}
	if ud.Len, err = s.r.U64(ref.Addr.Add(lay.Len)); err != nil {
		return nil, err
	}
	if ud.Metatable, err = s.r.Ptr(ref.Addr.Add(lay.Metatable)); err != nil {
		return nil, err
	}
	return ud, nil
}

// AsUpVal classifies ref as an upvalue box.
func (s *Space) AsUpVal(ref Ref) (*UpVal, error) {
	if _, err := s.check(ref, TagUpVal, true); err != nil {
		return nil, err
	}
	v, err := s.r.Ptr(ref.Addr.Add(s.lay.UpVal.V))
	if err != nil {
		return nil, err
	}
	return &UpVal{Addr: ref.Addr, V: v}, nil
}

// AsThread classifies ref as a coroutine.
func (s *Space) AsThread(ref Ref) (*Thread, error) {
	if _, err := s.check(ref, TagThread, true); err != nil {
		return nil, err
	}
	return s.thread(ref.Addr)
}

func (s *Space) thread(addr target.Address) (*Thread, error) {
	lay := s.lay.State
	th := &Thread{Addr: addr, BaseCI: addr.Add(lay.BaseCI)}
	var err error
	if th.Status, err = s.r.U8(addr.Add(lay.Status)); err != nil {
		return nil, err
	}
	if th.NCI, err = s.r.U16(addr.Add(lay.NCI)); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		dst *target.Address
		off int64
	}{
		{&th.Top, lay.Top},
		{&th.G, lay.G},
		{&th.CI, lay.CI},
		{&th.StackLast, lay.StackLast},
		{&th.Stack, lay.Stack},
	} {
		if *field.dst, err = s.r.Ptr(addr.Add(field.off)); err != nil {
			return nil, err
		}
	}
	return th, nil
}
