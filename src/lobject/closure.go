package lobject

import (
	"github.com/tanema/luapeek/src/lerrors"
	"github.com/tanema/luapeek/src/target"
)

type (
	// Closure is any callable value: a Lua closure, a C closure or a light C
	// function.
	Closure interface {
		Address() target.Address
		NUpvalues() int
		IsLua() bool
	}
	// LClosure is a closure over a prototype.
	LClosure struct {
		Addr      target.Address
		NUpvals   uint8
		P         target.Address
		upvalsArr target.Address
	}
	// CClosure is a native function with an inline array of upvalue values.
	CClosure struct {
		Addr    target.Address
		NUpvals uint8
		F       target.Address
		upvalue target.Address
	}
)

// Address implements Closure.
func (cl *LClosure) Address() target.Address { return cl.Addr }

// NUpvalues implements Closure.
func (cl *LClosure) NUpvalues() int { return int(cl.NUpvals) }

// IsLua implements Closure.
func (cl *LClosure) IsLua() bool { return true }

// Address implements Closure.
func (cl *CClosure) Address() target.Address { return cl.Addr }

// NUpvalues implements Closure.
func (cl *CClosure) NUpvalues() int { return int(cl.NUpvals) }

// IsLua implements Closure.
func (cl *CClosure) IsLua() bool { return false }

// Address implements Closure.
func (f LightCFunction) Address() target.Address { return target.Address(f) }

// NUpvalues implements Closure.
func (LightCFunction) NUpvalues() int { return 0 }

// IsLua implements Closure.
func (LightCFunction) IsLua() bool { return false }

// AsLuaClosure classifies ref as a Lua closure.
func (s *Space) AsLuaClosure(ref Ref) (*LClosure, error) {
	if _, err := s.check(ref, TagLuaClosure, true); err != nil {
		return nil, err
	}
	lay := s.lay.Closure
	nup, err := s.r.U8(ref.Addr.Add(lay.NUpvalues))
	if err != nil {
		return nil, err
	}
	p, err := s.r.Ptr(ref.Addr.Add(lay.P))
	if err != nil {
		return nil, err
	}
	return &LClosure{Addr: ref.Addr, NUpvals: nup, P: p, upvalsArr: ref.Addr.Add(lay.UpVals)}, nil
}

// AsCClosure classifies ref as a C closure.
func (s *Space) AsCClosure(ref Ref) (*CClosure, error) {
	if _, err := s.check(ref, TagCClosure, true); err != nil {
		return nil, err
	}
	lay := s.lay.Closure
	nup, err := s.r.U8(ref.Addr.Add(lay.NUpvalues))
	if err != nil {
		return nil, err
	}
	f, err := s.r.Ptr(ref.Addr.Add(lay.F))
	if err != nil {
		return nil, err
	}
	return &CClosure{Addr: ref.Addr, NUpvals: nup, F: f, upvalue: ref.Addr.Add(lay.Upvalue)}, nil
}

// AsClosure dispatches on the exact function variant of v. Light C functions
// carry no object and are returned as is.
func (s *Space) AsClosure(v TValue) (Closure, error) {
	switch v.FullTag() {
	case TagLuaClosure:
		cl, err := s.AsLuaClosure(Ref{Addr: v.Ptr, Tag: v.Tag})
		if err != nil {
			return nil, err
		}
		return cl, nil
	case TagCClosure:
		cl, err := s.AsCClosure(Ref{Addr: v.Ptr, Tag: v.Tag})
		if err != nil {
			return nil, err
		}
		return cl, nil
	case TagLightCFunc:
		return LightCFunction(v.Ptr), nil
	default:
		return nil, lerrors.New(lerrors.TypeMismatch, uint64(v.Addr), "expected function, found %v", v.Tag)
	}
}

// UpValAt returns the i-th (0-based) upvalue box of cl.
func (s *Space) UpValAt(cl *LClosure, i int) (*UpVal, error) {
	addr, err := s.r.Ptr(cl.upvalsArr.Index(int64(i), s.r.PtrSize()))
	if err != nil {
		return nil, err
	}
	return s.AsUpVal(Ref{Addr: addr})
}

// UpvalueAt returns the address of the i-th (0-based) inline upvalue of cl.
func (s *Space) UpvalueAt(cl *CClosure, i int) target.Address {
	return cl.upvalue.Index(int64(i), s.lay.TValue.Size)
}
