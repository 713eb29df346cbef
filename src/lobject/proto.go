package lobject

import (
	"github.com/tanema/luapeek/src/target"
)

type (
	// Proto is the compiled metadata of a Lua function.
	Proto struct {
		Addr            target.Address
		NumParams       uint8
		IsVararg        bool
		MaxStackSize    uint8
		SizeUpvalues    int32
		SizeCode        int32
		SizeLineInfo    int32
		SizeLocVars     int32
		SizeAbsLineInfo int32
		LineDefined     int32
		LastLineDefined int32
		Code            target.Address
		Upvalues        target.Address
		LineInfo        target.Address
		AbsLineInfo     target.Address
		LocVars         target.Address
		Source          target.Address
	}
	// LocVar is a local variable declaration, live for pc in [StartPC, EndPC).
	LocVar struct {
		VarName target.Address
		StartPC int32
		EndPC   int32
	}
	// Upvaldesc describes one upvalue of a prototype.
	Upvaldesc struct {
		Name    target.Address
		InStack bool
		Idx     uint8
	}
	// AbsLineInfo is an absolute line checkpoint.
	AbsLineInfo struct {
		PC   int32
		Line int32
	}
)

// AsProto classifies ref as a function prototype.
func (s *Space) AsProto(ref Ref) (*Proto, error) {
	if _, err := s.check(ref, TagProto, true); err != nil {
		return nil, err
	}
	lay := s.lay.Proto
	addr := ref.Addr
	p := &Proto{Addr: addr}
	var err error
	if p.NumParams, err = s.r.U8(addr.Add(lay.NumParams)); err != nil {
		return nil, err
	}
	vararg, err := s.r.U8(addr.Add(lay.IsVararg))
	if err != nil {
		return nil, err
	}
	p.IsVararg = vararg != 0
	if p.MaxStackSize, err = s.r.U8(addr.Add(lay.MaxStackSize)); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		dst *int32
		off int64
	}{
		{&p.SizeUpvalues, lay.SizeUpvalues},
		{&p.SizeCode, lay.SizeCode},
		{&p.SizeLineInfo, lay.SizeLineInfo},
		{&p.SizeLocVars, lay.SizeLocVars},
		{&p.SizeAbsLineInfo, lay.SizeAbsLineInfo},
		{&p.LineDefined, lay.LineDefined},
		{&p.LastLineDefined, lay.LastLineDefined},
	} {
		if *field.dst, err = s.r.I32(addr.Add(field.off)); err != nil {
			return nil, err
		}
	}
	for _, field := range []struct {
		dst *target.Address
		off int64
	}{
		{&p.Code, lay.Code},
		{&p.Upvalues, lay.Upvalues},
		{&p.LineInfo, lay.LineInfo},
		{&p.AbsLineInfo, lay.AbsLineInfo},
		{&p.LocVars, lay.LocVars},
		{&p.Source, lay.Source},
	} {
		if *field.dst, err = s.r.Ptr(addr.Add(field.off)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ProtoOf returns the prototype of a Lua closure.
func (s *Space) ProtoOf(cl *LClosure) (*Proto, error) {
	return s.AsProto(Ref{Addr: cl.P})
}

// LineDelta reads the signed line delta stored for instruction pc.
func (s *Space) LineDelta(p *Proto, pc int64) (int64, error) {
	d, err := s.r.I8(p.LineInfo.Add(pc))
	return int64(d), err
}

// AbsLineInfoAt reads the i-th absolute line checkpoint of p.
func (s *Space) AbsLineInfoAt(p *Proto, i int64) (AbsLineInfo, error) {
	lay := s.lay.AbsLineInfo
	addr := p.AbsLineInfo.Index(i, lay.Size)
	pc, err := s.r.I32(addr.Add(lay.PC))
	if err != nil {
		return AbsLineInfo{}, err
	}
	line, err := s.r.I32(addr.Add(lay.Line))
	if err != nil {
		return AbsLineInfo{}, err
	}
	return AbsLineInfo{PC: pc, Line: line}, nil
}

// LocVarAt reads the i-th local variable declaration of p.
func (s *Space) LocVarAt(p *Proto, i int64) (LocVar, error) {
	lay := s.lay.LocVar
	addr := p.LocVars.Index(i, lay.Size)
	name, err := s.r.Ptr(addr.Add(lay.VarName))
	if err != nil {
		return LocVar{}, err
	}
	start, err := s.r.I32(addr.Add(lay.StartPC))
	if err != nil {
		return LocVar{}, err
	}
	end, err := s.r.I32(addr.Add(lay.EndPC))
	if err != nil {
		return LocVar{}, err
	}
	return LocVar{VarName: name, StartPC: start, EndPC: end}, nil
}

// UpvaldescAt reads the i-th upvalue description of p.
func (s *Space) UpvaldescAt(p *Proto, i int64) (Upvaldesc, error) {
	lay := s.lay.Upvaldesc
	addr := p.Upvalues.Index(i, lay.Size)
	name, err := s.r.Ptr(addr.Add(lay.Name))
	if err != nil {
		return Upvaldesc{}, err
	}
	instack, err := s.r.U8(addr.Add(lay.InStack))
	if err != nil {
		return Upvaldesc{}, err
	}
	idx, err := s.r.U8(addr.Add(lay.Idx))
	if err != nil {
		return Upvaldesc{}, err
	}
	return Upvaldesc{Name: name, InStack: instack != 0, Idx: idx}, nil
}

// SourceOf returns the source descriptor of p, or "=?" when it has none.
func (s *Space) SourceOf(p *Proto) (string, error) {
	if p.Source.IsNil() {
		return "=?", nil
	}
	return s.StringAt(p.Source)
}
