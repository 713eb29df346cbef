package target

import (
	"debug/elf"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/tanema/luapeek/src/lerrors"
)

type (
	// Core reads memory out of the PT_LOAD segments of an ELF core file.
	Core struct {
		file     *os.File
		segments []segment
		order    elf.Data
	}
	segment struct {
		min, max Address
		off      int64
		filesz   int64
	}
)

// OpenCore opens an ELF core dump.
func OpenCore(path string) (*Core, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open core %s", path)
	}
	ef, err := elf.NewFile(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "parse core %s", path)
	}
	if ef.Type != elf.ET_CORE {
		_ = file.Close()
		return nil, errors.Errorf("%s is not a core file (%v)", path, ef.Type)
	}
	c := &Core{file: file, order: ef.Data}
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		c.segments = append(c.segments, segment{
			min:    Address(prog.Vaddr),
			max:    Address(prog.Vaddr + prog.Memsz),
			off:    int64(prog.Off),
			filesz: int64(prog.Filesz),
		})
	}
	sort.Slice(c.segments, func(i, j int) bool { return c.segments[i].min < c.segments[j].min })
	return c, nil
}

// LittleEndian reports the byte order recorded in the core header.
func (c *Core) LittleEndian() bool { return c.order == elf.ELFDATA2LSB }

// ReadAt implements Memory. Bytes past a segment's file size read as zero, they
// were never dumped because they were never written.
func (c *Core) ReadAt(p []byte, addr Address) error {
	for len(p) > 0 {
		idx := sort.Search(len(c.segments), func(i int) bool { return c.segments[i].max > addr })
		if idx == len(c.segments) || c.segments[idx].min > addr {
			return lerrors.New(lerrors.ReadFailure, uint64(addr), "address not in core")
		}
		seg := c.segments[idx]
		n := min(int64(len(p)), seg.max.Sub(addr))
		rel := addr.Sub(seg.min)
		chunk := p[:n]
		clear(chunk)
		if rel < seg.filesz {
			m := min(n, seg.filesz-rel)
			if _, err := c.file.ReadAt(chunk[:m], seg.off+rel); err != nil {
				return lerrors.Wrap(lerrors.ReadFailure, uint64(addr), errors.Wrap(err, "core read"))
			}
		}
		p = p[n:]
		addr = addr.Add(n)
	}
	return nil
}

// Close closes the core file.
func (c *Core) Close() error {
	return c.file.Close()
}
