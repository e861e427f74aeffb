package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bgpkit/ris-live-go/internal/health"
)

var (
	MessagesTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rislive_messages_total", Help: "feed messages received"}, []string{"status"})
	ElementsTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rislive_elements_total", Help: "routing elements decoded"}, []string{"type"})
	DecodeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rislive_decode_errors_total", Help: "decode failures"}, []string{"kind"})
	ReconnectsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "rislive_reconnects_total", Help: "websocket reconnects"})
	SinkErrorsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rislive_sink_errors_total", Help: "sink delivery failures"}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(MessagesTotal, ElementsTotal, DecodeErrorsTotal, ReconnectsTotal, SinkErrorsTotal)
}

func Serve(addr string, log *zap.SugaredLogger) {
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}

func ServeWithHealth(addr string, healthHandler *health.Handler, log *zap.SugaredLogger) {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthHandler.HealthHandler)
	http.HandleFunc("/ready", healthHandler.ReadinessHandler)
	http.HandleFunc("/live", healthHandler.LivenessHandler)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}
