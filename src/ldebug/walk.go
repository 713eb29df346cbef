package ldebug

import (
	"github.com/go-kit/log/level"

	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/target"
)

type (
	// TraceEntry is one frame of a traceback.
	TraceEntry struct {
		Level int
		*Debug
	}
	// Slot is one stack slot with its decoded value.
	Slot struct {
		Index   int
		Addr    target.Address
		Value   lobject.TValue
		Type    string
		Display string
	}
)

// TracebackWhat is the set of facts a traceback reports for every frame.
var TracebackWhat = What{Source: true, Line: true, Name: true, TailCall: true}

// Traceback collects TracebackWhat for every frame from the current one out.
// Entries gathered before an error are returned with it.
func (L *State) Traceback() ([]TraceEntry, error) {
	var entries []TraceEntry
	lvl := 0
	for ci, err := range L.Ancestors() {
		if err != nil {
			return entries, err
		}
		ar, err := L.GetInfo(ci, TracebackWhat)
		if err != nil {
			return entries, err
		}
		entries = append(entries, TraceEntry{Level: lvl, Debug: ar})
		lvl++
	}
	return entries, nil
}

// StackSlots lists the stack from the slot below the top down to the bottom.
// Index 0 is the topmost value.
func (L *State) StackSlots() ([]Slot, error) {
	space := L.space
	n := space.StackDistance(L.thread.Top, L.thread.Stack)
	if n < 0 || n > conf.LUAIMAXSTACK {
		return nil, newCorrupt(L.thread.Top, "stack top is %d slots from the stack base", n)
	}
	slots := make([]Slot, 0, n)
	for i := n - 1; i >= 0; i-- {
		addr := space.StackValue(L.thread.Stack, i)
		tv, err := space.TValue(addr)
		if err != nil {
			return slots, err
		}
		display, err := space.Describe(tv)
		if err != nil {
			return slots, err
		}
		slots = append(slots, Slot{
			Index:   len(slots),
			Addr:    addr,
			Value:   tv,
			Type:    lobject.TypeName(tv),
			Display: display,
		})
	}
	return slots, nil
}

// Threads lists the main thread followed by every coroutine found on the
// global allgc list.
func (L *State) Threads() ([]*lobject.Thread, error) {
	space := L.space
	glay := space.Layout().Global
	r := space.Reader()
	g := L.thread.G

	main, err := r.Ptr(g.Add(glay.MainThread))
	if err != nil {
		return nil, err
	}
	var threads []*lobject.Thread
	if !main.IsNil() {
		th, err := space.AsThread(lobject.Ref{Addr: main})
		if err != nil {
			return nil, err
		}
		threads = append(threads, th)
	}

	addr, err := r.Ptr(g.Add(glay.AllGC))
	if err != nil {
		return threads, err
	}
	guard := newChainGuard("allgc", conf.MAXGCOBJECTS)
	for !addr.IsNil() {
		if err := guard.visit(addr); err != nil {
			return threads, err
		}
		hdr, err := space.Header(addr)
		if err != nil {
			return threads, err
		}
		if hdr.Tag.WithVariant() == lobject.TagThread && addr != main {
			th, err := space.AsThread(lobject.Ref{Addr: addr})
			if err != nil {
				return threads, err
			}
			level.Debug(L.logger).Log("msg", "found thread", "addr", addr)
			threads = append(threads, th)
		}
		addr = hdr.Next
	}
	return threads, nil
}
