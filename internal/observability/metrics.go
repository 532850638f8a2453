package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/envutil"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	llmTokens     *CounterVec
	invalidOutput *CounterVec
	nodeDuration  *HistogramVec
	nodeTotal     *CounterVec
	runsTotal     *CounterVec
	runsActive    *Gauge
	refineLoops   *HistogramVec
	lessonContent *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

// Current returns the process metrics, or nil when metrics are disabled. Every method is safe
// on a nil receiver.
func Current() *Metrics { return instance }

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
		apiRequests: NewCounterVec("cg_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"cg_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("cg_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("cg_llm_requests_total", "Structured completion calls by provider/schema/status.", []string{"provider", "schema", "status"}),
		llmLatency: NewHistogramVec(
			"cg_llm_request_duration_seconds",
			"Structured completion latency in seconds.",
			[]string{"provider", "schema"},
			[]float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		),
		llmTokens:     NewCounterVec("cg_llm_tokens_total", "LLM tokens by provider/kind.", []string{"provider", "kind"}),
		invalidOutput: NewCounterVec("cg_llm_invalid_output_total", "Completions rejected by decoding or validation.", []string{"schema"}),
		nodeDuration: NewHistogramVec(
			"cg_workflow_node_duration_seconds",
			"Workflow node duration in seconds.",
			[]string{"node", "status"},
			[]float64{0.01, 0.1, 1, 5, 15, 30, 60, 120, 300, 600},
		),
		nodeTotal:  NewCounterVec("cg_workflow_node_total", "Workflow node executions by node/status.", []string{"node", "status"}),
		runsTotal:  NewCounterVec("cg_generation_runs_total", "Generation runs by final status.", []string{"status"}),
		runsActive: NewGauge("cg_generation_runs_active", "Generation runs currently executing."),
		refineLoops: NewHistogramVec(
			"cg_refinement_iterations",
			"Refinement iterations per finished run.",
			nil,
			[]float64{0, 1, 2, 3},
		),
		lessonContent: NewCounterVec("cg_lesson_content_total", "Lesson content generation outcomes.", []string{"status"}),
	}
}

// StartServer serves the Prometheus text exposition on addr until ctx is done.
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens, m.invalidOutput,
		m.nodeDuration, m.nodeTotal,
		m.runsTotal, m.runsActive, m.refineLoops, m.lessonContent,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(method)
	route = orUnknown(route)
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
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

func (m *Metrics) ObserveLLMRequest(provider, schemaName, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	provider = orUnknown(provider)
	schemaName = orUnknown(schemaName)
	m.llmRequests.Inc(provider, schemaName, orUnknown(status))
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), provider, schemaName)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), provider, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), provider, "output")
	}
}

func (m *Metrics) IncInvalidOutput(schemaName string) {
	if m == nil {
		return
	}
	m.invalidOutput.Inc(orUnknown(schemaName))
}

func (m *Metrics) ObserveNode(node, status string, dur time.Duration) {
	if m == nil {
		return
	}
	node = orUnknown(node)
	status = orUnknown(status)
	m.nodeTotal.Inc(node, status)
	m.nodeDuration.Observe(dur.Seconds(), node, status)
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

// RunFinished records the final status of a run and how many refinement passes it took.
func (m *Metrics) RunFinished(status string, iterations int) {
	if m == nil {
		return
	}
	m.runsActive.Dec()
	m.runsTotal.Inc(orUnknown(status))
	if iterations >= 0 {
		m.refineLoops.Observe(float64(iterations))
	}
}

func (m *Metrics) AddLessonContent(generated, failed int) {
	if m == nil {
		return
	}
	if generated > 0 {
		m.lessonContent.Add(float64(generated), "generated")
	}
	if failed > 0 {
		m.lessonContent.Add(float64(failed), "failed")
	}
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
