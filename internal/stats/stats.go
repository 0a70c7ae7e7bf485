package stats

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "go_notepad"

// Metric names shared by the components that report them.
const (
	ConnectedClients   = "connected_clients"
	ActiveRooms        = "active_rooms"
	EditsCommitted     = "edits_committed"
	EditsFailed        = "edits_failed"
	BroadcastDelivered = "broadcast_delivered"
	BroadcastDropped   = "broadcast_dropped"
	LoginAllowed       = "login_allowed"
	LoginRejected      = "login_rejected"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

type StatsUpdater struct {
	registry *prometheus.Registry
	mu       sync.RWMutex
	gauges   map[string]prometheus.Gauge
}

// NewStatsUpdater creates a new stats updater and serves its registry on
// GET /metrics of the given mux.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
	}
	su.initializeMetrics()
	mux.Handle("GET /metrics", promhttp.HandlerFor(su.registry, promhttp.HandlerOpts{}))

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.registry.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the server started.",
		}, func() float64 {
			return time.Since(startTime).Seconds()
		}),
	)
}

// RegisterMetric adds a gauge under name. Registering the same name twice is a no-op.
func (su *StatsUpdater) RegisterMetric(name string) {
	su.mu.Lock()
	defer su.mu.Unlock()

	if _, ok := su.gauges[name]; ok {
		return
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      "go-notepad " + name,
	})
	su.registry.MustRegister(g)
	su.gauges[name] = g
}

func (su *StatsUpdater) Incr(name string) {
	su.add(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.add(name, -1)
}

func (su *StatsUpdater) add(name string, v float64) {
	su.mu.RLock()
	g, ok := su.gauges[name]
	su.mu.RUnlock()
	if !ok {
		panic("metric not found: " + name)
	}

	g.Add(v)
}
