// Package instrumented decorates a ports.Runtime with call counting, failure
// counting and allocation latency, without changing its behavior.
package instrumented

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

const (
	// instrumentationName is used for the OpenTelemetry meter.
	instrumentationName = "github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/instrumented"

	metricsNamespace = "eager"
	metricsSubsystem = "runtime"
)

// Operation labels.
const (
	OpNewStatus            = "new_status"
	OpDeleteStatus         = "delete_status"
	OpNewContextOptions    = "new_context_options"
	OpDeleteContextOptions = "delete_context_options"
	OpSetConfig            = "set_config"
	OpNewContext           = "new_context"
	OpDeleteContext        = "delete_context"
)

// Config configures the decorator.
type Config struct {
	// Registerer receives the Prometheus collectors. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Logger is an optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Runtime wraps another runtime and records every native call.
//
// The live_contexts gauge follows the contexts this wrapper handed out: any
// non-null context returned by NewContext counts, whatever the status, and
// DeleteContext only moves the gauge for a context it is still tracking.
type Runtime struct {
	inner  ports.Runtime
	logger *slog.Logger

	// owned holds the contexts allocated through this wrapper and not yet deleted.
	owned sync.Map

	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	live     *prometheus.GaugeVec

	allocDuration metric.Float64Histogram
}

var _ ports.Runtime = (*Runtime)(nil)

// New wraps inner. Collectors already registered by an earlier wrapper are reused.
func New(inner ports.Runtime, cfg Config) (*Runtime, error) {
	if inner == nil {
		return nil, domain.ErrRuntimeMissing
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	calls, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "calls_total",
		Help:      "Native runtime calls by operation.",
	}, []string{"runtime", "op"})
	if err != nil {
		return nil, fmt.Errorf("registering call counter: %w", err)
	}

	failures, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "failures_total",
		Help:      "Native runtime calls that reported a non-OK status.",
	}, []string{"runtime", "op", "code"})
	if err != nil {
		return nil, fmt.Errorf("registering failure counter: %w", err)
	}

	live, err := registerGaugeVec(reg, prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "live_contexts",
		Help:      "Execution contexts allocated and not yet released.",
	}, []string{"runtime"})
	if err != nil {
		return nil, fmt.Errorf("registering live context gauge: %w", err)
	}

	allocDuration, err := otel.Meter(instrumentationName).Float64Histogram(
		"eager.runtime.context.allocation.duration",
		metric.WithDescription("Duration of native execution context allocation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating allocation duration metric: %w", err)
	}

	return &Runtime{
		inner: inner,
		logger: logger.With(
			slog.String("component", "instrumented.Runtime"),
			slog.String("runtime", inner.Name()),
		),
		calls:         calls,
		failures:      failures,
		live:          live,
		allocDuration: allocDuration,
	}, nil
}

// Unwrap returns the decorated runtime.
func (r *Runtime) Unwrap() ports.Runtime { return r.inner }

// Name implements ports.Runtime.
func (r *Runtime) Name() string { return r.inner.Name() }

// NewStatus implements ports.Runtime.
func (r *Runtime) NewStatus() domain.NativeStatus {
	r.count(OpNewStatus)
	return r.inner.NewStatus()
}

// DeleteStatus implements ports.Runtime.
func (r *Runtime) DeleteStatus(s domain.NativeStatus) {
	r.count(OpDeleteStatus)
	r.inner.DeleteStatus(s)
}

// StatusCode implements ports.Runtime.
func (r *Runtime) StatusCode(s domain.NativeStatus) domain.Code {
	return r.inner.StatusCode(s)
}

// StatusMessage implements ports.Runtime.
func (r *Runtime) StatusMessage(s domain.NativeStatus) string {
	return r.inner.StatusMessage(s)
}

// NewContextOptions implements ports.Runtime.
func (r *Runtime) NewContextOptions() domain.NativeOptions {
	r.count(OpNewContextOptions)
	return r.inner.NewContextOptions()
}

// DeleteContextOptions implements ports.Runtime.
func (r *Runtime) DeleteContextOptions(o domain.NativeOptions) {
	r.count(OpDeleteContextOptions)
	r.inner.DeleteContextOptions(o)
}

// SetAsync implements ports.Runtime.
func (r *Runtime) SetAsync(o domain.NativeOptions, enable bool) {
	r.inner.SetAsync(o, enable)
}

// SetDevicePlacementPolicy implements ports.Runtime.
func (r *Runtime) SetDevicePlacementPolicy(o domain.NativeOptions, policy domain.DevicePlacementPolicy) {
	r.inner.SetDevicePlacementPolicy(o, policy)
}

// SetConfig implements ports.Runtime.
func (r *Runtime) SetConfig(o domain.NativeOptions, proto []byte, s domain.NativeStatus) {
	r.count(OpSetConfig)
	r.inner.SetConfig(o, proto, s)
	r.observeStatus(OpSetConfig, s)
}

// NewContext implements ports.Runtime.
//
// The allocation duration is recorded against context.Background because
// ports.Runtime carries no context; caller spans and baggage are not attached.
func (r *Runtime) NewContext(o domain.NativeOptions, s domain.NativeStatus) domain.NativeContext {
	r.count(OpNewContext)

	start := time.Now()
	c := r.inner.NewContext(o, s)
	elapsed := time.Since(start)

	ok := r.observeStatus(OpNewContext, s)
	if !c.IsNull() {
		if _, loaded := r.owned.LoadOrStore(c, struct{}{}); !loaded {
			r.live.WithLabelValues(r.inner.Name()).Inc()
		}
	}

	r.allocDuration.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("runtime", r.inner.Name()),
			attribute.Bool("success", ok),
		),
	)

	return c
}

// DeleteContext implements ports.Runtime.
func (r *Runtime) DeleteContext(c domain.NativeContext) {
	r.count(OpDeleteContext)
	r.inner.DeleteContext(c)

	if _, tracked := r.owned.LoadAndDelete(c); tracked {
		r.live.WithLabelValues(r.inner.Name()).Dec()
	}
}

func (r *Runtime) count(op string) {
	r.calls.WithLabelValues(r.inner.Name(), op).Inc()
}

// observeStatus records a failure if s is non-OK and reports whether it was OK.
func (r *Runtime) observeStatus(op string, s domain.NativeStatus) bool {
	code := r.inner.StatusCode(s)
	if code == domain.CodeOK {
		return true
	}

	r.failures.WithLabelValues(r.inner.Name(), op, code.String()).Inc()
	r.logger.Debug("native call failed",
		slog.String("op", op),
		slog.String("code", code.String()),
		slog.String("message", r.inner.StatusMessage(s)),
	)

	return false
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}

		return nil, err
	}

	return c, nil
}

func registerGaugeVec(reg prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) (*prometheus.GaugeVec, error) {
	g := prometheus.NewGaugeVec(opts, labels)
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
		}

		return nil, err
	}

	return g, nil
}
