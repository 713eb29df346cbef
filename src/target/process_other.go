//go:build !linux

package target

import "github.com/pkg/errors"

// Process reads the memory of a live process. Only linux is supported.
type Process struct{ pid int }

// OpenProcess fails on platforms without /proc/pid/mem.
func OpenProcess(pid int) (*Process, error) {
	return nil, errors.Errorf("attaching to %d: live processes are only supported on linux", pid)
}

// Pid returns the process id.
func (p *Process) Pid() int { return p.pid }

// ReadAt implements Memory.
func (p *Process) ReadAt(_ []byte, _ Address) error {
	return errors.New("live processes are only supported on linux")
}

// Close is a no-op.
func (p *Process) Close() error { return nil }
