// Package ldebug answers the debug API questions about a paused Lua 5.4 thread
// by walking its call infos in target memory: which frames exist, which
// function and line each one is at, what its locals and upvalues are called
// and where they live.
package ldebug

import (
	"fmt"
	"iter"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/lerrors"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

type (
	// CallStatus is the callstatus bitset of a call info.
	CallStatus uint16
	// CallInfo is one activation record read out of the target.
	CallInfo struct {
		Addr       target.Address
		Func       target.Address
		Top        target.Address
		Previous   target.Address
		Next       target.Address
		SavedPC    target.Address
		NExtraArgs int32
		FTransfer  uint16
		NTransfer  uint16
		CallStatus CallStatus
	}
	// State is a lua_State snapshot. Its current call info and stack top are read
	// once when it is created.
	State struct {
		space  *lobject.Space
		logger log.Logger
		thread *lobject.Thread
	}
	// Option configures a State.
	Option func(*State)
)

const (
	// CistOAH is set when the original value of allowhook is on.
	CistOAH CallStatus = 1 << iota
	// CistC is set while a C function runs.
	CistC
	// CistFresh is set on a fresh luaV_execute frame.
	CistFresh
	// CistHooked is set while a hook runs.
	CistHooked
	// CistYPCall is set on a yieldable protected call.
	CistYPCall
	// CistTail is set when the call was a tail call.
	CistTail
	// CistHookYield is set on the last hook called when it yielded.
	CistHookYield
	// CistFin is set while a finalizer runs.
	CistFin
	// CistTran is set when the call info has transfer information.
	CistTran
	// CistClsRet is set while closing tbc variables on return.
	CistClsRet
)

var statusNames = []string{"oah", "c", "fresh", "hooked", "ypcall", "tail", "hookyield", "fin", "tran", "clsret"}

func (cs CallStatus) String() string {
	var names []string
	for i, name := range statusNames {
		if cs&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "lua"
	}
	return strings.Join(names, "|")
}

// WithLogger sets the logger used while walking. Walk steps are logged at debug
// level.
func WithLogger(logger log.Logger) Option {
	return func(L *State) { L.logger = logger }
}

// New reads the lua_State at addr.
func New(space *lobject.Space, addr target.Address, opts ...Option) (*State, error) {
	thread, err := space.AsThread(lobject.Ref{Addr: addr})
	if err != nil {
		return nil, err
	}
	L := &State{space: space, logger: log.NewNopLogger(), thread: thread}
	for _, opt := range opts {
		opt(L)
	}
	return L, nil
}

// Space returns the memory space the state is read from.
func (L *State) Space() *lobject.Space { return L.space }

// Thread returns the thread fields read when the state was created.
func (L *State) Thread() *lobject.Thread { return L.thread }

// IsLua reports whether ci runs bytecode.
func (ci *CallInfo) IsLua() bool { return ci.CallStatus&CistC == 0 }

// IsNative reports whether ci runs a C function.
func (ci *CallInfo) IsNative() bool { return !ci.IsLua() }

// IsTail reports whether ci was entered through a tail call.
func (ci *CallInfo) IsTail() bool { return ci.CallStatus&CistTail != 0 }

// CallInfo reads the call info at addr.
func (L *State) CallInfo(addr target.Address) (*CallInfo, error) {
	lay := L.space.Layout().CallInfo
	r := L.space.Reader()
	ci := &CallInfo{Addr: addr}
	for _, field := range []struct {
		dst *target.Address
		off int64
	}{
		{&ci.Func, lay.Func},
		{&ci.Top, lay.Top},
		{&ci.Previous, lay.Previous},
		{&ci.Next, lay.Next},
		{&ci.SavedPC, lay.SavedPC},
	} {
		ptr, err := r.Ptr(addr.Add(field.off))
		if err != nil {
			return nil, err
		}
		*field.dst = ptr
	}
	var err error
	if ci.NExtraArgs, err = r.I32(addr.Add(lay.NExtraArgs)); err != nil {
		return nil, err
	}
	if ci.FTransfer, err = r.U16(addr.Add(lay.FTransfer)); err != nil {
		return nil, err
	}
	if ci.NTransfer, err = r.U16(addr.Add(lay.NTransfer)); err != nil {
		return nil, err
	}
	status, err := r.U16(addr.Add(lay.CallStatus))
	if err != nil {
		return nil, err
	}
	ci.CallStatus = CallStatus(status)
	return ci, nil
}

// CI reads the current call info of the thread.
func (L *State) CI() (*CallInfo, error) {
	return L.CallInfo(L.thread.CI)
}

// IsBase reports whether ci is the sentinel call info embedded in the state.
func (L *State) IsBase(ci *CallInfo) bool { return ci.Addr == L.thread.BaseCI }

// FuncValue reads the tagged value in the function slot of ci.
func (L *State) FuncValue(ci *CallInfo) (lobject.TValue, error) {
	return L.space.TValue(ci.Func)
}

// ClosureOf classifies the function running in ci.
func (L *State) ClosureOf(ci *CallInfo) (lobject.Closure, error) {
	fn, err := L.FuncValue(ci)
	if err != nil {
		return nil, err
	}
	return L.space.AsClosure(fn)
}

// luaProto returns the closure and prototype of a Lua frame.
func (L *State) luaProto(ci *CallInfo) (*lobject.LClosure, *lobject.Proto, error) {
	if !ci.IsLua() {
		return nil, nil, lerrors.New(lerrors.NotManagedFrame, uint64(ci.Addr), "C function has no bytecode")
	}
	fn, err := L.FuncValue(ci)
	if err != nil {
		return nil, nil, err
	}
	cl, err := L.space.AsLuaClosure(lobject.Ref{Addr: fn.Ptr, Tag: fn.Tag})
	if err != nil {
		return nil, nil, err
	}
	p, err := L.space.ProtoOf(cl)
	if err != nil {
		return nil, nil, err
	}
	return cl, p, nil
}

// CurrentPC returns the index of the instruction ci is executing. Only Lua
// frames have one, C frames fail with NotManagedFrame.
func (L *State) CurrentPC(ci *CallInfo) (int64, error) {
	_, p, err := L.luaProto(ci)
	if err != nil {
		return 0, err
	}
	return currentPC(L.space, ci, p), nil
}

func currentPC(space *lobject.Space, ci *CallInfo, p *lobject.Proto) int64 {
	return ci.SavedPC.Sub(p.Code)/space.Layout().InstructionSize - 1
}

// CurrentLine returns the source line ci is executing, or -1 for C frames.
func (L *State) CurrentLine(ci *CallInfo) (int64, error) {
	if !ci.IsLua() {
		return -1, nil
	}
	_, p, err := L.luaProto(ci)
	if err != nil {
		return 0, err
	}
	return FuncLine(L.space, p, currentPC(L.space, ci, p))
}

// Ancestors walks from the current call info through the previous links up to,
// but excluding, the base call info. The sequence ends with a CorruptSnapshot
// error if the chain loops or is longer than any real stack could be.
func (L *State) Ancestors() iter.Seq2[*CallInfo, error] {
	return func(yield func(*CallInfo, error) bool) {
		guard := newChainGuard("call info", conf.MAXCALLS)
		for addr := L.thread.CI; addr != L.thread.BaseCI; {
			if err := guard.visit(addr); err != nil {
				yield(nil, err)
				return
			}
			ci, err := L.CallInfo(addr)
			if err != nil {
				yield(nil, err)
				return
			}
			level.Debug(L.logger).Log("msg", "walk frame", "ci", ci.Addr, "status", ci.CallStatus)
			if !yield(ci, nil) {
				return
			}
			addr = ci.Previous
		}
	}
}

// GetStack returns the call info n levels out from the current one, level 0
// being the current frame. The result is false when the stack is not that deep.
func (L *State) GetStack(n int) (*CallInfo, bool, error) {
	if n < 0 {
		return nil, false, nil
	}
	for ci, err := range L.Ancestors() {
		if err != nil {
			return nil, false, err
		}
		if n == 0 {
			return ci, true, nil
		}
		n--
	}
	return nil, false, nil
}

// chainGuard detects loops in a linked list without remembering every node,
// using Brent's algorithm, and caps the total length of the walk.
type chainGuard struct {
	what   string
	saved  target.Address
	power  int
	steps  int
	total  int
	limit  int
	primed bool
}

func newChainGuard(what string, limit int) *chainGuard {
	return &chainGuard{what: what, power: 1, limit: limit}
}

func (g *chainGuard) visit(addr target.Address) error {
	switch {
	case addr.IsNil():
		return lerrors.New(lerrors.CorruptSnapshot, 0, "%v chain broken after %d links", g.what, g.total)
	case g.primed && addr == g.saved:
		return lerrors.New(lerrors.CorruptSnapshot, uint64(addr), "%v chain loops after %d links", g.what, g.total)
	case g.total >= g.limit:
		return lerrors.New(lerrors.CorruptSnapshot, uint64(addr), "%v chain longer than %d links", g.what, g.limit)
	}
	g.total++
	g.steps++
	if !g.primed || g.steps == g.power {
		g.saved, g.primed = addr, true
		g.power *= 2
		g.steps = 0
	}
	return nil
}

func newCorrupt(addr target.Address, format string, args ...any) error {
	return lerrors.New(lerrors.CorruptSnapshot, uint64(addr), format, args...)
}

func (ci *CallInfo) String() string {
	return fmt.Sprintf("CallInfo(%v, %v)", ci.Addr, ci.CallStatus)
}
