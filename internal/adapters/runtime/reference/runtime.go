// Package reference implements ports.Runtime in pure Go.
//
// Each execution context owns a gorgonia tensor engine, so the downstream
// tensor layer can run without libtensorflow. The backend reproduces the
// native status discipline: every fallible call writes its outcome into the
// status handle it was given.
package reference

import (
	"fmt"
	"sync"

	"gorgonia.org/tensor"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/handles"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// Name is the registry name of this backend.
const Name = "reference"

// Config configures the reference runtime.
type Config struct {
	// MaxContexts caps live execution contexts. Zero means unlimited.
	MaxContexts int
}

// Runtime is the pure-Go runtime backend.
type Runtime struct {
	maxContexts int

	// ctxMu serializes the limit check with context insertion.
	ctxMu    sync.Mutex
	statuses *handles.Table[*status]
	options  *handles.Table[*options]
	contexts *handles.Table[*execContext]
}

var _ ports.Runtime = (*Runtime)(nil)

type status struct {
	mu      sync.Mutex
	code    domain.Code
	message string
}

func (s *status) set(code domain.Code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.code = code
	s.message = message
}

func (s *status) get() (domain.Code, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.code, s.message
}

type options struct {
	mu        sync.Mutex
	async     bool
	placement domain.DevicePlacementPolicy
}

type execContext struct {
	async     bool
	placement domain.DevicePlacementPolicy
	engine    tensor.Engine
}

// New creates a reference runtime.
func New(cfg Config) *Runtime {
	return &Runtime{
		maxContexts: cfg.MaxContexts,
		statuses:    handles.NewTable[*status](),
		options:     handles.NewTable[*options](),
		contexts:    handles.NewTable[*execContext](),
	}
}

// Name implements ports.Runtime.
func (r *Runtime) Name() string { return Name }

// NewStatus implements ports.Runtime.
func (r *Runtime) NewStatus() domain.NativeStatus {
	return domain.NativeStatus(r.statuses.Put(&status{}))
}

// DeleteStatus implements ports.Runtime.
func (r *Runtime) DeleteStatus(s domain.NativeStatus) {
	r.statuses.Delete(uintptr(s))
}

// StatusCode implements ports.Runtime.
// Unknown handles read as INVALID_ARGUMENT.
func (r *Runtime) StatusCode(s domain.NativeStatus) domain.Code {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return domain.CodeInvalidArgument
	}

	code, _ := st.get()

	return code
}

// StatusMessage implements ports.Runtime.
func (r *Runtime) StatusMessage(s domain.NativeStatus) string {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return "invalid status handle"
	}

	_, msg := st.get()

	return msg
}

// NewContextOptions implements ports.Runtime.
func (r *Runtime) NewContextOptions() domain.NativeOptions {
	return domain.NativeOptions(r.options.Put(&options{placement: domain.PlacementSilent}))
}

// DeleteContextOptions implements ports.Runtime.
func (r *Runtime) DeleteContextOptions(o domain.NativeOptions) {
	r.options.Delete(uintptr(o))
}

// SetAsync implements ports.Runtime.
func (r *Runtime) SetAsync(o domain.NativeOptions, enable bool) {
	if opts, ok := r.options.Get(uintptr(o)); ok {
		opts.mu.Lock()
		opts.async = enable
		opts.mu.Unlock()
	}
}

// SetDevicePlacementPolicy implements ports.Runtime.
// Invalid policies are stored as given and rejected by NewContext.
func (r *Runtime) SetDevicePlacementPolicy(o domain.NativeOptions, policy domain.DevicePlacementPolicy) {
	if opts, ok := r.options.Get(uintptr(o)); ok {
		opts.mu.Lock()
		opts.placement = policy
		opts.mu.Unlock()
	}
}

// SetConfig implements ports.Runtime.
// Only an empty configuration is accepted.
func (r *Runtime) SetConfig(o domain.NativeOptions, proto []byte, s domain.NativeStatus) {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return
	}

	if _, ok := r.options.Get(uintptr(o)); !ok {
		st.set(domain.CodeInvalidArgument, "invalid context options handle")
		return
	}

	if len(proto) > 0 {
		st.set(domain.CodeUnimplemented, "reference runtime does not accept serialized session config")
		return
	}

	st.set(domain.CodeOK, "")
}

// NewContext implements ports.Runtime.
func (r *Runtime) NewContext(o domain.NativeOptions, s domain.NativeStatus) domain.NativeContext {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return 0
	}

	opts, ok := r.options.Get(uintptr(o))
	if !ok {
		st.set(domain.CodeInvalidArgument, "invalid context options handle")
		return 0
	}

	opts.mu.Lock()
	ec := &execContext{
		async:     opts.async,
		placement: opts.placement,
		engine:    &tensor.StdEng{},
	}
	opts.mu.Unlock()

	if !ec.placement.Valid() {
		st.set(domain.CodeInvalidArgument, fmt.Sprintf("unknown device placement policy %d", int(ec.placement)))
		return 0
	}

	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()

	if r.maxContexts > 0 && r.contexts.Len() >= r.maxContexts {
		st.set(domain.CodeResourceExhausted,
			fmt.Sprintf("execution context limit reached (%d live)", r.maxContexts))
		return 0
	}

	st.set(domain.CodeOK, "")

	return domain.NativeContext(r.contexts.Put(ec))
}

// DeleteContext implements ports.Runtime.
func (r *Runtime) DeleteContext(c domain.NativeContext) {
	r.contexts.Delete(uintptr(c))
}

// Engine returns the tensor engine owned by a live execution context.
func (r *Runtime) Engine(c domain.NativeContext) (tensor.Engine, bool) {
	ec, ok := r.contexts.Get(uintptr(c))
	if !ok {
		return nil, false
	}

	return ec.engine, true
}

// ContextSettings reports the options a live execution context was created with.
func (r *Runtime) ContextSettings(c domain.NativeContext) (async bool, policy domain.DevicePlacementPolicy, ok bool) {
	ec, found := r.contexts.Get(uintptr(c))
	if !found {
		return false, 0, false
	}

	return ec.async, ec.placement, true
}

// LiveContexts returns the number of execution contexts not yet deleted.
func (r *Runtime) LiveContexts() int {
	return r.contexts.Len()
}

// LiveStatuses returns the number of status objects not yet deleted.
func (r *Runtime) LiveStatuses() int {
	return r.statuses.Len()
}

// LiveOptions returns the number of options objects not yet deleted.
func (r *Runtime) LiveOptions() int {
	return r.options.Len()
}
