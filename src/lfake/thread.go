package lfake

import (
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

// Call status bits written into call infos.
const (
	CistC    = 1 << 1
	CistTail = 1 << 5
	CistTran = 1 << 8
)

type (
	// Thread builds one lua_State: its stack and its call info list. The base
	// call info is embedded in the state and is always the current one until
	// Call pushes another.
	Thread struct {
		b     *Builder
		Addr  target.Address
		Stack target.Address
		size  int
		top   int
		cis   []target.Address
	}
	// Frame describes a call info pushed by Call. PC is the pc of the current
	// instruction of a Lua frame, Top defaults to the end of the stack.
	Frame struct {
		Func       int
		Status     uint16
		PC         int
		NExtraArgs int
		FTransfer  int
		NTransfer  int
		Top        int
	}
)

// Thread allocates a coroutine with a stack of size slots.
func (b *Builder) Thread(size int) *Thread {
	return b.newThread(b.object(b.Layout.State.Size, lobject.TagThread), size)
}

// MainThread allocates the main thread. Like the interpreter it is not linked
// into allgc, the global state points at it directly.
func (b *Builder) MainThread(size int) *Thread {
	th := b.newThread(b.alloc(b.Layout.State.Size, lobject.TagThread), size)
	b.Image.PutPtr(b.G.Add(b.Layout.Global.MainThread), th.Addr)
	return th
}

func (b *Builder) newThread(addr target.Address, size int) *Thread {
	lay := b.Layout.State
	slot := b.Layout.StackValue.Size
	th := &Thread{b: b, Addr: addr, size: size}
	th.Stack = b.Image.Alloc(int64(size+1) * slot)
	base := addr.Add(lay.BaseCI)
	th.cis = []target.Address{base}

	img := b.Image
	img.PutPtr(addr.Add(lay.G), b.G)
	img.PutPtr(addr.Add(lay.Stack), th.Stack)
	img.PutPtr(addr.Add(lay.StackLast), th.Slot(size))
	img.PutPtr(addr.Add(lay.CI), base)

	cilay := b.Layout.CallInfo
	img.PutPtr(base.Add(cilay.Func), th.Stack)
	img.PutPtr(base.Add(cilay.Top), th.Slot(min(size, 21)))
	img.PutU16(base.Add(cilay.CallStatus), CistC)
	th.Push(Nil())
	return th
}

// Slot returns the address of stack slot i.
func (th *Thread) Slot(i int) target.Address {
	return th.Stack.Index(int64(i), th.b.Layout.StackValue.Size)
}

// Top is the index of the first free slot.
func (th *Thread) Top() int { return th.top }

// Push stores v in the first free slot and returns its index.
func (th *Thread) Push(v Value) int {
	i := th.top
	th.b.PutValue(th.Slot(i), v)
	th.SetTop(i + 1)
	return i
}

// SetTop moves the top of the stack to slot i.
func (th *Thread) SetTop(i int) {
	th.top = i
	th.b.Image.PutPtr(th.Addr.Add(th.b.Layout.State.Top), th.Slot(i))
}

// CI returns the current call info.
func (th *Thread) CI() target.Address { return th.cis[len(th.cis)-1] }

// BaseCI returns the call info embedded in the state.
func (th *Thread) BaseCI() target.Address { return th.cis[0] }

// Call pushes a call info for f and makes it current.
func (th *Thread) Call(f Frame) target.Address {
	b := th.b
	lay := b.Layout.CallInfo
	img := b.Image
	ci := img.Alloc(lay.Size)
	prev := th.CI()

	top := f.Top
	if top == 0 {
		top = th.size
	}
	img.PutPtr(ci.Add(lay.Func), th.Slot(f.Func))
	img.PutPtr(ci.Add(lay.Top), th.Slot(top))
	img.PutPtr(ci.Add(lay.Previous), prev)
	img.PutPtr(prev.Add(lay.Next), ci)
	img.PutU16(ci.Add(lay.CallStatus), f.Status)
	img.PutI32(ci.Add(lay.NExtraArgs), int32(f.NExtraArgs))
	img.PutU16(ci.Add(lay.FTransfer), uint16(f.FTransfer))
	img.PutU16(ci.Add(lay.NTransfer), uint16(f.NTransfer))
	if f.Status&CistC == 0 {
		if code, ok := th.codeOf(f.Func); ok {
			img.PutPtr(ci.Add(lay.SavedPC), code.Index(int64(f.PC+1), b.Layout.InstructionSize))
		}
	}

	th.cis = append(th.cis, ci)
	img.PutPtr(th.Addr.Add(b.Layout.State.CI), ci)
	img.PutU16(th.Addr.Add(b.Layout.State.NCI), uint16(len(th.cis)-1))
	return ci
}

// codeOf finds the bytecode of the Lua closure stored in slot i.
func (th *Thread) codeOf(i int) (target.Address, bool) {
	b := th.b
	space := b.Space()
	tv, err := space.TValue(th.Slot(i))
	if err != nil || !tv.IsLuaClosure() {
		return 0, false
	}
	proto, err := space.Reader().Ptr(tv.Ptr.Add(b.Layout.Closure.P))
	if err != nil {
		return 0, false
	}
	code, ok := b.code[proto]
	return code, ok
}
