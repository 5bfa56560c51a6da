package monitor

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/Vigil/pkg/logger"
)

var (
	// LoginAttempts counts submitted logins, partitioned by terminal outcome.
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_login_attempts_total",
		Help: "Total number of login attempts by result",
	}, []string{"result"})
	// SessionsActive is the number of sessions currently supervised.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_sessions_active",
		Help: "Number of graphical sessions currently running",
	})
	// HandshakeMessages counts decoded handshake messages received on the inbox.
	HandshakeMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_handshake_messages_total",
		Help: "Handshake messages received by message type",
	}, []string{"message"})
	// SessionDuration tracks how long supervised sessions ran, in seconds.
	SessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigil_session_duration_seconds",
		Help:    "Time from session start to completed teardown",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

var registerOnce sync.Once

// Register adds all Vigil collectors to reg. The default registry is only
// registered once per process.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{LoginAttempts, SessionsActive, HandshakeMessages, SessionDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// InitMetrics registers Prometheus metrics and starts an HTTP server to expose them.
// It takes an address string (e.g., "127.0.0.1:9090") on which to listen for requests.
// An empty address leaves the metrics unexposed.
func InitMetrics(addr string) {
	if addr == "" {
		return
	}
	registerOnce.Do(func() {
		if err := Register(prometheus.DefaultRegisterer); err != nil {
			logger.Log.Error("Metrics registration failed", "err", err)
		}
	})

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

// Personal.AI order the ending
