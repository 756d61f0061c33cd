package cascade

import (
	"sync"
	"sync/atomic"

	"invoice-scan-service/pkg/models"
)

// Metrics counts per-level and per-decoder successes across the process
// lifetime. Counters are diagnostic; they never influence cascade decisions.
type Metrics struct {
	total           atomic.Int64
	direct          atomic.Int64
	rotation        atomic.Int64
	ml              atomic.Int64
	fallbackSuccess atomic.Int64
	failures        atomic.Int64
	degraded        atomic.Int64

	mu         sync.Mutex
	perDecoder map[string]int64
}

func newMetrics() *Metrics {
	return &Metrics{perDecoder: make(map[string]int64)}
}

func (m *Metrics) recordDecoder(name string) {
	m.mu.Lock()
	m.perDecoder[name]++
	m.mu.Unlock()
}

func (m *Metrics) snapshot() models.CascadeMetrics {
	m.mu.Lock()
	perDecoder := make(map[string]int64, len(m.perDecoder))
	for name, count := range m.perDecoder {
		perDecoder[name] = count
	}
	m.mu.Unlock()

	return models.CascadeMetrics{
		TotalRequests:    m.total.Load(),
		DirectSuccess:    m.direct.Load(),
		RotationSuccess:  m.rotation.Load(),
		MLSuccess:        m.ml.Load(),
		FallbackSuccess:  m.fallbackSuccess.Load(),
		TotalFailures:    m.failures.Load(),
		FallbackDegraded: m.degraded.Load(),
		PerDecoder:       perDecoder,
	}
}
