package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/athro-ingest/internal/platform/envutil"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

// Extraction outcomes.
const (
	OutcomeContent  = "content"
	OutcomeTemplate = "template"
	OutcomeError    = "error"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	extractions       *CounterVec
	extractionLatency *HistogramVec
	stepFailures      *CounterVec
	storageFetches    *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process-wide metrics, or nil when metrics are off. Every
// method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("athro_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"athro_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		apiInflight: NewGauge("athro_api_inflight_requests", "In-flight API requests."),
		extractions: NewCounterVec(
			"athro_extractions_total",
			"Document extractions by kind/source/outcome.",
			[]string{"kind", "source", "outcome"},
		),
		extractionLatency: NewHistogramVec(
			"athro_extraction_duration_seconds",
			"Document extraction latency in seconds by kind/outcome.",
			[]string{"kind", "outcome"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		stepFailures: NewCounterVec(
			"athro_extraction_step_failures_total",
			"Failed extraction steps by step/code/reason.",
			[]string{"step", "code", "reason"},
		),
		storageFetches: NewCounterVec(
			"athro_storage_fetch_total",
			"Object storage downloads by bucket/outcome.",
			[]string{"bucket", "outcome"},
		),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.extractions,
		m.extractionLatency,
		m.stepFailures,
		m.storageFetches,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	code := strconv.Itoa(status)
	m.apiRequests.Inc(method, route, code)
	m.apiLatency.Observe(dur.Seconds(), method, route, code)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveExtraction records one finished ProcessDocument call.
func (m *Metrics) ObserveExtraction(kind, source, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.extractions.Inc(kind, source, outcome)
	m.extractionLatency.Observe(dur.Seconds(), kind, outcome)
}

func (m *Metrics) IncStepFailure(step, code, reason string) {
	if m == nil {
		return
	}
	m.stepFailures.Inc(step, code, reason)
}

func (m *Metrics) IncStorageFetch(bucket, outcome string) {
	if m == nil {
		return
	}
	m.storageFetches.Inc(bucket, outcome)
}
