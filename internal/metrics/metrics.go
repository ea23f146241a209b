package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records scanner, signal and HTTP metrics on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry     *prometheus.Registry
	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	candidates   *prometheus.CounterVec
	signals      *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		scans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fortis_scans_total",
				Help: "Scan passes per pair by outcome",
			},
			[]string{"symbol", "timeframe", "status"},
		),
		scanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fortis_scan_duration_seconds",
				Help:    "Duration of one fetch and analysis pass",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"timeframe"},
		),
		candidates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fortis_candidates_total",
				Help: "Signal candidates by final state",
			},
			[]string{"status"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fortis_signals_total",
				Help: "New validated signals",
			},
			[]string{"symbol", "timeframe", "direction"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fortis_last_price",
				Help: "Last close seen for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fortis_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fortis_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fortis_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
	}
}

// Handler serves the registry for scraping
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordScan records one pass over a pair
func (r *Recorder) RecordScan(symbol, timeframe string, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.scans.WithLabelValues(symbol, timeframe, status).Inc()
	r.scanDuration.WithLabelValues(timeframe).Observe(d.Seconds())
}

// RecordCandidates adds candidate outcomes from one pass
func (r *Recorder) RecordCandidates(validated, rejected int) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues("validated").Add(float64(validated))
	r.candidates.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordSignal counts a new signal
func (r *Recorder) RecordSignal(symbol, timeframe, direction string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(symbol, timeframe, direction).Inc()
}

// RecordLastPrice records the last price for a symbol
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	if r == nil {
		return
	}
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error occurrence
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordHTTP records a served request. route should be the templated path.
func (r *Recorder) RecordHTTP(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
