package ldebug

import (
	"github.com/tanema/luapeek/src/conf"
	"github.com/tanema/luapeek/src/lobject"
)

// FuncLine maps instruction pc of p to a source line. Lines are stored as
// one signed delta per instruction plus an absolute checkpoint at least every
// conf.MAXIWTHABS instructions, so the walk starts from the last checkpoint at
// or before pc. A prototype without line information yields -1, a pc outside
// the line table fails with CorruptSnapshot.
func FuncLine(space *lobject.Space, p *lobject.Proto, pc int64) (int64, error) {
	if p.LineInfo.IsNil() {
		return -1, nil
	}
	if pc < -1 || pc >= int64(p.SizeLineInfo) {
		return 0, newCorrupt(p.Addr, "pc %d outside line table of %d entries", pc, p.SizeLineInfo)
	}
	basepc, line, err := baseLine(space, p, pc)
	if err != nil {
		return 0, err
	}
	for basepc < pc {
		basepc++
		delta, err := space.LineDelta(p, basepc)
		if err != nil {
			return 0, err
		}
		line += delta
	}
	return line, nil
}

// baseLine finds the checkpoint to start the delta walk from. Before the first
// checkpoint the walk starts at pc -1 on the line the function was defined.
func baseLine(space *lobject.Space, p *lobject.Proto, pc int64) (int64, int64, error) {
	size := int64(p.SizeAbsLineInfo)
	if size == 0 {
		return -1, int64(p.LineDefined), nil
	}
	first, err := space.AbsLineInfoAt(p, 0)
	if err != nil {
		return 0, 0, err
	}
	if pc < int64(first.PC) {
		return -1, int64(p.LineDefined), nil
	}
	// there is a checkpoint at least every MAXIWTHABS instructions so this is a
	// lower bound, clamped in case the table is not well formed.
	i := min(max(pc/conf.MAXIWTHABS-1, 0), size-1)
	abs, err := space.AbsLineInfoAt(p, i)
	if err != nil {
		return 0, 0, err
	}
	for i > 0 && pc < int64(abs.PC) {
		i--
		if abs, err = space.AbsLineInfoAt(p, i); err != nil {
			return 0, 0, err
		}
	}
	for i+1 < size {
		next, err := space.AbsLineInfoAt(p, i+1)
		if err != nil {
			return 0, 0, err
		}
		if pc < int64(next.PC) {
			break
		}
		i, abs = i+1, next
	}
	return int64(abs.PC), int64(abs.Line), nil
}
