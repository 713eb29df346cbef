package ldebug

import (
	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

// Names given to slots and upvalues without a declared name.
const (
	VarargName       = "vararg"
	TemporaryName    = "(temporary)"
	CTemporaryName   = "(C temporary)"
	CUpvalueName     = "(c upvalue, no name)"
	NoNameUpvalue    = "(no name)"
	maxUpvalueLookup = 255
)

// Variable is a local or upvalue binding. Addr is the location of its tagged
// value. Value is only filled by the listing functions.
type Variable struct {
	Index int
	Name  string
	Addr  target.Address
	Value lobject.TValue
}

// GetLocal resolves local n of ci. Positive indexes name declared locals live at
// the current pc, falling back to temporaries inside the frame. Negative indexes
// address the extra arguments of a vararg function. The result is false when
// there is no such slot.
func (L *State) GetLocal(ci *CallInfo, n int) (Variable, bool, error) {
	slot := L.space.Layout().StackValue.Size
	base := ci.Func.Add(slot)
	name := ""
	if ci.IsLua() {
		_, p, err := L.luaProto(ci)
		if err != nil {
			return Variable{}, false, err
		}
		if n < 0 {
			return L.findVararg(ci, p, n)
		}
		if name, err = L.localName(p, n, currentPC(L.space, ci, p)); err != nil {
			return Variable{}, false, err
		}
	}
	if name == "" {
		limit, err := L.frameLimit(ci)
		if err != nil {
			return Variable{}, false, err
		}
		if n <= 0 || L.space.StackDistance(limit, base) < int64(n) {
			return Variable{}, false, nil
		}
		name = TemporaryName
		if !ci.IsLua() {
			name = CTemporaryName
		}
	}
	return Variable{Index: n, Name: name, Addr: L.space.StackValue(base, int64(n-1))}, true, nil
}

// frameLimit is the end of the slots owned by ci: the stack top for the
// current frame, the next frame's function slot otherwise.
func (L *State) frameLimit(ci *CallInfo) (target.Address, error) {
	if ci.Addr == L.thread.CI {
		return L.thread.Top, nil
	}
	next, err := L.CallInfo(ci.Next)
	if err != nil {
		return 0, err
	}
	return next.Func, nil
}

// findVararg locates extra argument n (negative) of a vararg frame. Extra
// arguments are kept below the function slot.
func (L *State) findVararg(ci *CallInfo, p *lobject.Proto, n int) (Variable, bool, error) {
	nextra := int(ci.NExtraArgs)
	if !p.IsVararg || n < -nextra {
		return Variable{}, false, nil
	}
	addr := L.space.StackValue(ci.Func, int64(-nextra-(n+1)))
	return Variable{Index: n, Name: VarargName, Addr: addr}, true, nil
}

// localName returns the name of the n-th local live at pc, or "".
func (L *State) localName(p *lobject.Proto, n int, pc int64) (string, error) {
	for i := int64(0); i < int64(p.SizeLocVars); i++ {
		lv, err := L.space.LocVarAt(p, i)
		if err != nil {
			return "", err
		}
		if int64(lv.StartPC) > pc {
			break
		}
		if pc < int64(lv.EndPC) {
			n--
			if n == 0 {
				return L.space.StringAt(lv.VarName)
			}
		}
	}
	return "", nil
}

// GetUpvalue resolves upvalue n (1-based) of the closure held by fn. C closure
// upvalues have no names, Lua closure upvalues take theirs from the prototype.
// The result is false for other values and indexes out of range.
func (L *State) GetUpvalue(fn lobject.TValue, n int) (Variable, bool, error) {
	space := L.space
	switch {
	case fn.IsCClosure():
		cl, err := space.AsCClosure(lobject.Ref{Addr: fn.Ptr, Tag: fn.Tag})
		if err != nil {
			return Variable{}, false, err
		}
		if n < 1 || n > cl.NUpvalues() {
			return Variable{}, false, nil
		}
		return Variable{Index: n, Name: CUpvalueName, Addr: space.UpvalueAt(cl, n-1)}, true, nil
	case fn.IsLuaClosure():
		cl, err := space.AsLuaClosure(lobject.Ref{Addr: fn.Ptr, Tag: fn.Tag})
		if err != nil {
			return Variable{}, false, err
		}
		p, err := space.ProtoOf(cl)
		if err != nil {
			return Variable{}, false, err
		}
		if n < 1 || n > int(p.SizeUpvalues) {
			return Variable{}, false, nil
		}
		uv, err := space.UpValAt(cl, n-1)
		if err != nil {
			return Variable{}, false, err
		}
		desc, err := space.UpvaldescAt(p, int64(n-1))
		if err != nil {
			return Variable{}, false, err
		}
		name := ""
		if !desc.Name.IsNil() {
			if name, err = space.StringAt(desc.Name); err != nil {
				return Variable{}, false, err
			}
		}
		if name == "" {
			name = NoNameUpvalue
		}
		return Variable{Index: n, Name: name, Addr: uv.V}, true, nil
	default:
		return Variable{}, false, nil
	}
}

// Locals lists the locals of ci from index 1 until the first missing one,
// followed by its extra arguments.
func (L *State) Locals(ci *CallInfo) ([]Variable, error) {
	var vars []Variable
	for _, step := range []int{1, -1} {
		for n := step; ; n += step {
			if n > conf.LUAIMAXSTACK || n < -conf.LUAIMAXSTACK {
				break
			}
			v, ok, err := L.GetLocal(ci, n)
			if err != nil {
				return vars, err
			}
			if !ok {
				break
			}
			if v.Value, err = L.space.TValue(v.Addr); err != nil {
				return vars, err
			}
			vars = append(vars, v)
		}
	}
	return vars, nil
}

// Upvalues lists the upvalues of the closure held by fn.
func (L *State) Upvalues(fn lobject.TValue) ([]Variable, error) {
	var vars []Variable
	for n := 1; n <= maxUpvalueLookup; n++ {
		v, ok, err := L.GetUpvalue(fn, n)
		if err != nil {
			return vars, err
		}
		if !ok {
			break
		}
		if v.Value, err = L.space.TValue(v.Addr); err != nil {
			return vars, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// Index2Value resolves an API stack index against the current frame the way
// the C API does: positive indexes count from the function slot, negative ones
// from the top, and pseudo-indexes address the registry or the upvalues of a
// running C closure. Slots that hold nothing resolve to the global nil value.
func (L *State) Index2Value(idx int) (target.Address, error) {
	space := L.space
	nilvalue := L.thread.G.Add(space.Layout().Global.NilValue)
	ci, err := L.CI()
	if err != nil {
		return 0, err
	}
	switch {
	case idx > 0:
		o := space.StackValue(ci.Func, int64(idx))
		if o >= L.thread.Top {
			return nilvalue, nil
		}
		return o, nil
	case idx == 0:
		return nilvalue, nil
	case !conf.IsPseudo(idx):
		return space.StackValue(L.thread.Top, int64(idx)), nil
	case idx == conf.LUAREGISTRYINDEX:
		return L.thread.G.Add(space.Layout().Global.Registry), nil
	default:
		idx = conf.LUAREGISTRYINDEX - idx
		fn, err := L.FuncValue(ci)
		if err != nil {
			return 0, err
		}
		if !fn.IsCClosure() {
			return nilvalue, nil
		}
		cl, err := space.AsCClosure(lobject.Ref{Addr: fn.Ptr, Tag: fn.Tag})
		if err != nil {
			return 0, err
		}
		if idx > cl.NUpvalues() {
			return nilvalue, nil
		}
		return space.UpvalueAt(cl, idx-1), nil
	}
}
