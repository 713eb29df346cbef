package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	pm "github.com/prometheus/client_model/go"

	"github.com/tanema/luapeek/src/layout"
	"github.com/tanema/luapeek/src/ldebug"
	"github.com/tanema/luapeek/src/lobject"
	"github.com/tanema/luapeek/src/shell"
	"github.com/tanema/luapeek/src/target"
)

// session is one opened target with its read cache and counters.
type session struct {
	name     string
	cache    *target.Cached
	closer   io.Closer
	space    *lobject.Space
	registry *prometheus.Registry
}

func openSession() (*session, error) {
	lay := layout.Default()
	if cfg.layout != "" {
		var err error
		if lay, err = layout.Load(cfg.layout); err != nil {
			return nil, err
		}
	}
	switch {
	case cfg.core != "":
		core, err := target.OpenCore(cfg.core)
		if err != nil {
			return nil, err
		}
		if core.LittleEndian() == lay.BigEndian {
			level.Warn(logger).Log("msg", "core byte order differs from layout", "core", cfg.core)
		}
		return newSession(core, lay, "core "+cfg.core, core)
	case cfg.pid > 0:
		proc, err := target.OpenProcess(cfg.pid)
		if err != nil {
			return nil, err
		}
		return newSession(proc, lay, fmt.Sprintf("pid %d", cfg.pid), proc)
	default:
		return nil, errors.New("no target, pass --pid or --core")
	}
}

func newSession(mem target.Memory, lay *layout.Layout, name string, closer io.Closer) (*session, error) {
	reg := prometheus.NewRegistry()
	cache, err := target.NewCached(target.NewInstrumented(mem, target.NewMetrics(reg)), cfg.cacheSize)
	if err != nil {
		return nil, err
	}
	return &session{
		name:     name,
		cache:    cache,
		closer:   closer,
		space:    lobject.NewSpace(cache, lay),
		registry: reg,
	}, nil
}

// refresh drops cached pages so a process resumed between commands is read
// afresh.
func (s *session) refresh() {
	s.cache.Purge()
}

// attach returns a shell.Attach reading the state at stateHex.
func (s *session) attach(stateHex string) shell.Attach {
	return func() (*ldebug.State, error) {
		addr, err := shell.ParseAddress(stateHex)
		if err != nil {
			return nil, err
		}
		level.Debug(logger).Log("msg", "attach", "state", addr, "target", s.name)
		return ldebug.New(s.space, addr, ldebug.WithLogger(logger))
	}
}

func (s *session) dumpMetrics(w io.Writer) error {
	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if mf.GetType() != pm.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%v %v\n", mf.GetName(), m.GetCounter().GetValue())
		}
	}
	fmt.Fprintf(w, "luapeek_cache_pages %v\n", s.cache.Len())
	return nil
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
