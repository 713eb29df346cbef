//go:build linux

package target

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/tanema/luapeek/src/lerrors"
)

// Process reads the memory of a live process. Reads go through process_vm_readv
// and fall back to /proc/pid/mem when the syscall is not permitted.
type Process struct {
	pid int
	mem *os.File
}

// OpenProcess attaches read-only to the memory of pid. The caller is responsible
// for keeping the process stopped while it is inspected.
func OpenProcess(pid int) (*Process, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return nil, errors.Wrapf(err, "open memory of %d", pid)
	}
	return &Process{pid: pid, mem: f}, nil
}

// Pid returns the process id.
func (p *Process) Pid() int { return p.pid }

// ReadAt implements Memory.
func (p *Process) ReadAt(buf []byte, addr Address) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err == nil && n == len(buf) {
		return nil
	}
	m, ferr := p.mem.ReadAt(buf, int64(addr))
	if ferr != nil {
		return lerrors.Wrap(lerrors.ReadFailure, uint64(addr), errors.Wrapf(ferr, "pid %d", p.pid))
	}
	if m != len(buf) {
		return lerrors.New(lerrors.ReadFailure, uint64(addr), "pid %d: short read %d of %d", p.pid, m, len(buf))
	}
	return nil
}

// Close releases the memory handle.
func (p *Process) Close() error {
	return p.mem.Close()
}
