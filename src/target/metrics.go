package target

import "github.com/prometheus/client_golang/prometheus"

type (
	// Metrics counts target memory traffic.
	Metrics struct {
		Reads      prometheus.Counter
		ReadErrors prometheus.Counter
		ReadBytes  prometheus.Counter
	}
	// Instrumented is a Memory that records every read in Metrics.
	Instrumented struct {
		mem     Memory
		metrics *Metrics
	}
)

// NewMetrics creates the counters and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luapeek_target_reads_total",
			Help: "Total number of reads issued against target memory",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luapeek_target_read_errors_total",
			Help: "Total number of target memory reads that failed",
		}),
		ReadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "luapeek_target_read_bytes_total",
			Help: "Total number of bytes requested from target memory",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Reads, m.ReadErrors, m.ReadBytes)
	}
	return m
}

// NewInstrumented wraps mem so its reads are counted in metrics.
func NewInstrumented(mem Memory, metrics *Metrics) *Instrumented {
	return &Instrumented{mem: mem, metrics: metrics}
}

// ReadAt implements Memory.
func (i *Instrumented) ReadAt(p []byte, addr Address) error {
	i.metrics.Reads.Inc()
	i.metrics.ReadBytes.Add(float64(len(p)))
	err := i.mem.ReadAt(p, addr)
	if err != nil {
		i.metrics.ReadErrors.Inc()
	}
	return err
}
