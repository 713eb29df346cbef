package ldebug

import (
	"github.com/hashicorp/go-multierror"

	"github.com/tanema/luapeek/src/lobject"
)

type (
	// What selects the facts GetInfo collects. Each flag matches one option
	// character of lua_getinfo.
	What struct {
		Source   bool // S
		Line     bool // l
		Upvalues bool // u
		TailCall bool // t
		Transfer bool // r
		Name     bool // n
		Lines    bool // L
		Func     bool // f
	}
	// Debug is the lua_Debug record of one frame.
	Debug struct {
		Event           int
		Name            string
		NameWhat        string
		What            string
		Source          string
		SrcLen          int
		CurrentLine     int64
		LineDefined     int64
		LastLineDefined int64
		NUps            int
		NParams         int
		IsVararg        bool
		IsTailCall      bool
		FTransfer       int
		NTransfer       int
		ShortSrc        string
		CI              *CallInfo
	}
)

// ParseWhat converts an option string such as "Slnt" to a What. Unknown option
// characters are skipped and reported by a false result.
func ParseWhat(options string) (What, bool) {
	var what What
	ok := true
	for _, opt := range options {
		switch opt {
		case 'S':
			what.Source = true
		case 'l':
			what.Line = true
		case 'u':
			what.Upvalues = true
		case 't':
			what.TailCall = true
		case 'r':
			what.Transfer = true
		case 'n':
			what.Name = true
		case 'L':
			what.Lines = true
		case 'f':
			what.Func = true
		default:
			ok = false
		}
	}
	return what, ok
}

// GetInfoString is GetInfo driven by an option string. The result is false
// when the string holds unknown options, the known ones are still collected.
func (L *State) GetInfoString(ci *CallInfo, options string) (*Debug, bool, error) {
	what, ok := ParseWhat(options)
	ar, err := L.GetInfo(ci, what)
	return ar, ok, err
}

// GetInfo collects the facts selected by what about ci. Options are gathered
// independently: when one fails the others are still filled in and every
// failure is returned together. Name is accepted but never filled, L and f are
// left to the caller.
func (L *State) GetInfo(ci *CallInfo, what What) (*Debug, error) {
	ar := &Debug{CI: ci}
	var errs *multierror.Error

	var cl lobject.Closure
	fn, err := L.FuncValue(ci)
	if err != nil {
		return ar, err
	}
	// a slot without a closure reports as C, a closure that cannot be read
	// leaves the closure fields empty.
	var clErr error
	if fn.Kind() == lobject.KindFunction {
		if cl, clErr = L.space.AsClosure(fn); clErr != nil {
			errs = multierror.Append(errs, clErr)
		}
	}

	if what.Source && clErr == nil {
		if err := L.funcInfo(ar, cl); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if what.Line {
		if ar.CurrentLine, err = L.CurrentLine(ci); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if what.Upvalues && clErr == nil {
		if err := L.upvalueInfo(ar, cl); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if what.TailCall {
		ar.IsTailCall = ci.IsTail()
	}
	if what.Transfer {
		if ci.CallStatus&CistTran != 0 {
			ar.FTransfer, ar.NTransfer = int(ci.FTransfer), int(ci.NTransfer)
		} else {
			ar.FTransfer, ar.NTransfer = 0, 0
		}
	}
	return ar, errs.ErrorOrNil()
}

func (L *State) funcInfo(ar *Debug, cl lobject.Closure) error {
	lcl, isLua := cl.(*lobject.LClosure)
	if !isLua {
		ar.Source, ar.SrcLen = "=[C]", 4
		ar.LineDefined, ar.LastLineDefined = -1, -1
		ar.What = "C"
		ar.ShortSrc = ChunkID(ar.Source)
		return nil
	}
	p, err := L.space.ProtoOf(lcl)
	if err != nil {
		return err
	}
	if ar.Source, err = L.space.SourceOf(p); err != nil {
		return err
	}
	ar.SrcLen = len(ar.Source)
	ar.LineDefined, ar.LastLineDefined = int64(p.LineDefined), int64(p.LastLineDefined)
	ar.What = "Lua"
	if ar.LineDefined == 0 {
		ar.What = "main"
	}
	ar.ShortSrc = ChunkID(ar.Source)
	return nil
}

func (L *State) upvalueInfo(ar *Debug, cl lobject.Closure) error {
	if cl == nil {
		ar.NUps = 0
	} else {
		ar.NUps = cl.NUpvalues()
	}
	lcl, isLua := cl.(*lobject.LClosure)
	if !isLua {
		ar.IsVararg, ar.NParams = true, 0
		return nil
	}
	p, err := L.space.ProtoOf(lcl)
	if err != nil {
		return err
	}
	ar.IsVararg, ar.NParams = p.IsVararg, int(p.NumParams)
	return nil
}
