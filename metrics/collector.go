// Package metrics exposes Prometheus counters for command processing and
// element activity.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/interpreter"
)

const namespace = "irta"

// resultOK labels accepted commands; rejected ones use their failure kind.
const resultOK = "ok"

// Collector is a renderer and command observer backed by its own registry.
type Collector struct {
	registry *prometheus.Registry

	commands   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	elements   *prometheus.GaugeVec
	mutations  *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// New creates a collector with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by intent kind and result",
		}, []string{"intent", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time to classify, resolve and apply one command",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"intent"}),
		elements: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elements",
			Help:      "Elements in the registry, by variant",
		}, []string{"variant"}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Committed element mutations, by variant",
		}, []string{"variant"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected commands, by failure kind",
		}, []string{"kind"}),
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OnElementCreated implements registry.Observer.
func (c *Collector) OnElementCreated(snap element.Snapshot) {
	c.elements.WithLabelValues(snap.Variant.String()).Inc()
}

// OnElementUpdated implements registry.Observer.
func (c *Collector) OnElementUpdated(_ string, _ uint64, state element.State) {
	c.mutations.WithLabelValues(state.Variant().String()).Inc()
}

// OnCommandRejected implements interpreter.Renderer.
func (c *Collector) OnCommandRejected(_ string, kind failure.Kind, _ string) {
	c.rejections.WithLabelValues(kind.String()).Inc()
}

// ObserveCommand implements interpreter.CommandObserver.
func (c *Collector) ObserveCommand(out interpreter.Outcome, elapsed time.Duration) {
	kind := out.Intent.Kind.String()
	result := resultOK
	if !out.OK() {
		result = out.Kind().String()
	}
	c.commands.WithLabelValues(kind, result).Inc()
	c.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes the handler on addr at path until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", slog.String("addr", addr), slog.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		<-errCh
		return nil
	}
}
