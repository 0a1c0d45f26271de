package execctx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/reference"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/platform/logging"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// State is the lifecycle state of a Global.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Global lazily creates one execution context and shares it.
//
// The first Context call creates the context with default options; callers
// arriving meanwhile block until it finishes. A failed creation is final:
// every later call returns the same error without retrying.
type Global struct {
	rt   ports.Runtime
	once sync.Once

	state atomic.Int32

	mu     sync.RWMutex
	handle *Handle
	err    error
	closed bool
}

var _ ports.HealthChecker = (*Global)(nil)

// NewGlobal returns an uninitialized Global bound to rt.
func NewGlobal(rt ports.Runtime) *Global {
	return &Global{rt: rt, handle: &Handle{}}
}

// Context returns the shared context, creating it on first use.
func (g *Global) Context(ctx context.Context) (domain.NativeContext, error) {
	g.once.Do(func() { g.init(ctx) })

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return 0, domain.ErrClosed
	}

	if g.err != nil {
		return 0, g.err
	}

	return g.handle.Native(), nil
}

func (g *Global) init(ctx context.Context) {
	g.state.Store(int32(StateInitializing))

	// Creation outlives the first caller; its cancellation must not poison
	// everyone else.
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx)

	var (
		h   *Handle
		err error
	)

	if g.rt == nil {
		err = domain.ErrRuntimeMissing
	} else {
		h, err = New(ctx, g.rt, nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.err = err
		g.state.Store(int32(StateFailed))
		logger.ErrorContext(ctx, "global execution context unavailable",
			slog.String("code", domain.FailureCode(err).String()),
			slog.String("error", err.Error()),
		)

		return
	}

	g.handle.MoveFrom(h)
	g.state.Store(int32(StateReady))
	logger.InfoContext(ctx, "global execution context ready",
		slog.String("runtime", g.rt.Name()),
		slog.String("handle_id", g.handle.ID().String()),
	)
}

// State returns the current lifecycle state.
func (g *Global) State() State {
	return State(g.state.Load())
}

// Close deletes the shared context. Later Context calls return
// domain.ErrClosed. Close waits for an in-flight creation and is idempotent.
func (g *Global) Close() error {
	// Consumes the once so a Global closed before first use never allocates.
	g.once.Do(func() {})

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true
	g.state.Store(int32(StateClosed))

	return g.handle.Close()
}

// Name implements ports.HealthChecker.
func (g *Global) Name() string { return "execution-context" }

// Check implements ports.HealthChecker. It creates the context if nobody has
// yet, so a probe surfaces a runtime that cannot start.
func (g *Global) Check(ctx context.Context) error {
	_, err := g.Context(ctx)
	return err
}

var (
	globalMu      sync.Mutex
	globalRuntime ports.Runtime
	globalSealed  bool
	processGlobal atomic.Pointer[Global]
)

// Install selects the runtime the process-wide context is created on. It must
// run before the first GlobalContext call; afterwards it fails with
// domain.ErrGlobalInstalled.
func Install(rt ports.Runtime) error {
	if rt == nil {
		return domain.ErrRuntimeMissing
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSealed {
		return domain.ErrGlobalInstalled
	}

	globalRuntime = rt

	return nil
}

// GlobalContext returns the process-wide execution context, creating it on
// first use. Without a prior Install it is created on the pure-Go reference
// runtime.
func GlobalContext(ctx context.Context) (domain.NativeContext, error) {
	return process().Context(ctx)
}

// ProcessGlobal returns the process-wide Global, sealing the runtime choice.
func ProcessGlobal() *Global {
	return process()
}

// Shutdown deletes the process-wide context if it was created. The process
// cannot create another one afterwards.
func Shutdown() error {
	return process().Close()
}

func process() *Global {
	if g := processGlobal.Load(); g != nil {
		return g
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if g := processGlobal.Load(); g != nil {
		return g
	}

	rt := globalRuntime
	if rt == nil {
		rt = reference.New(reference.Config{})
	}

	g := NewGlobal(rt)
	globalSealed = true
	processGlobal.Store(g)

	return g
}
