package game

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server.
type Metrics struct {
	gm *Game

	sessionsConnected *prometheus.GaugeVec
	objectsCached     prometheus.Gauge
	objectsDirty      prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	commandsTotal     prometheus.Counter
	ticksTotal        prometheus.Counter
	tickSetSize       prometheus.Gauge
	uptimeSeconds     prometheus.Gauge
	memoryHeapBytes   prometheus.Gauge
	goroutines        prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(gm *Game) *Metrics {
	m := &Metrics{
		gm: gm,
		sessionsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gaia_sessions_connected",
			Help: "Number of currently connected sessions by transport.",
		}, []string{"transport"}),
		objectsCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_objects_cached",
			Help: "Number of objects resident in the write-through cache.",
		}),
		objectsDirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_objects_dirty",
			Help: "Number of cached objects awaiting write-back.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gaia_connections_total",
			Help: "Total connections since server start.",
		}, []string{"transport"}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaia_commands_processed_total",
			Help: "Total input lines processed since server start.",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaia_ticks_total",
			Help: "Total scheduler ticks since server start.",
		}),
		tickSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_tick_set_size",
			Help: "Number of objects with an on_tick handler.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaia_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.sessionsConnected,
		m.objectsCached,
		m.objectsDirty,
		m.connectionsTotal,
		m.commandsTotal,
		m.ticksTotal,
		m.tickSetSize,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// CommandProcessed counts one dispatched input line.
func (m *Metrics) CommandProcessed() { m.commandsTotal.Inc() }

// TickProcessed counts one scheduler tick.
func (m *Metrics) TickProcessed() { m.ticksTotal.Inc() }

// ConnectionOpened counts a new connection on a transport.
func (m *Metrics) ConnectionOpened(transport string) {
	m.connectionsTotal.WithLabelValues(transport).Inc()
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	byTransport := map[string]int{"telnet": 0, "websocket": 0}
	for _, s := range m.gm.Sessions.All() {
		byTransport[s.Transport]++
	}
	for transport, n := range byTransport {
		m.sessionsConnected.WithLabelValues(transport).Set(float64(n))
	}

	m.objectsCached.Set(float64(m.gm.Cache.Size()))
	m.objectsDirty.Set(float64(m.gm.Cache.DirtyCount()))
	m.tickSetSize.Set(float64(len(m.gm.Cache.TickSet())))
	m.uptimeSeconds.Set(time.Since(m.gm.StartTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving
// them.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}
