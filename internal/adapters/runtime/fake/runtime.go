// Package fake provides an in-memory ports.Runtime for tests.
//
// It counts every native call, tracks live handles so tests can assert on
// leaks, and lets a test inject failures into context allocation.
package fake

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/handles"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// Name is the backend name reported by the fake.
const Name = "fake"

// Calls counts native calls made against a Runtime.
type Calls struct {
	NewStatus            atomic.Int64
	DeleteStatus         atomic.Int64
	NewContextOptions    atomic.Int64
	DeleteContextOptions atomic.Int64
	SetConfig            atomic.Int64
	NewContext           atomic.Int64
	DeleteContext        atomic.Int64
}

type status struct {
	mu      sync.Mutex
	code    domain.Code
	message string
}

type failure struct {
	code    domain.Code
	message string
	// leak makes the failing call return a live handle anyway.
	leak bool
	// sticky keeps the failure armed after it fires.
	sticky bool
}

// Runtime is a fake runtime backend.
type Runtime struct {
	Calls Calls

	statuses *handles.Table[*status]
	options  *handles.Table[struct{}]
	contexts *handles.Table[struct{}]

	mu      sync.Mutex
	fail    *failure
	delay   time.Duration
	deleted []domain.NativeContext
}

var _ ports.Runtime = (*Runtime)(nil)

// New creates a fake runtime.
func New() *Runtime {
	return &Runtime{
		statuses: handles.NewTable[*status](),
		options:  handles.NewTable[struct{}](),
		contexts: handles.NewTable[struct{}](),
	}
}

// FailNextContext makes the next NewContext call fail with code and message.
func (r *Runtime) FailNextContext(code domain.Code, message string) {
	r.arm(&failure{code: code, message: message})
}

// FailContexts makes every NewContext call fail until ClearFailure.
func (r *Runtime) FailContexts(code domain.Code, message string) {
	r.arm(&failure{code: code, message: message, sticky: true})
}

// FailNextContextLeaking makes the next NewContext call fail but still return
// a live handle, the way some native runtimes do.
func (r *Runtime) FailNextContextLeaking(code domain.Code, message string) {
	r.arm(&failure{code: code, message: message, leak: true})
}

// ClearFailure disarms any pending failure.
func (r *Runtime) ClearFailure() {
	r.arm(nil)
}

// SetNewContextDelay makes NewContext sleep before allocating, widening race windows.
func (r *Runtime) SetNewContextDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.delay = d
}

// SetStatus overwrites a status object, as a native call would.
func (r *Runtime) SetStatus(s domain.NativeStatus, code domain.Code, message string) {
	if st, ok := r.statuses.Get(uintptr(s)); ok {
		st.mu.Lock()
		st.code = code
		st.message = message
		st.mu.Unlock()
	}
}

// LiveContexts returns the number of contexts allocated and not yet deleted.
func (r *Runtime) LiveContexts() int { return r.contexts.Len() }

// LiveStatuses returns the number of status objects allocated and not yet deleted.
func (r *Runtime) LiveStatuses() int { return r.statuses.Len() }

// LiveOptions returns the number of options objects allocated and not yet deleted.
func (r *Runtime) LiveOptions() int { return r.options.Len() }

// IsLive reports whether c is an allocated, undeleted context.
func (r *Runtime) IsLive(c domain.NativeContext) bool {
	_, ok := r.contexts.Get(uintptr(c))
	return ok
}

// Deleted returns the non-null contexts passed to DeleteContext, in call order.
func (r *Runtime) Deleted() []domain.NativeContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.NativeContext, len(r.deleted))
	copy(out, r.deleted)

	return out
}

// Name implements ports.Runtime.
func (r *Runtime) Name() string { return Name }

// NewStatus implements ports.Runtime.
func (r *Runtime) NewStatus() domain.NativeStatus {
	r.Calls.NewStatus.Add(1)
	return domain.NativeStatus(r.statuses.Put(&status{}))
}

// DeleteStatus implements ports.Runtime.
func (r *Runtime) DeleteStatus(s domain.NativeStatus) {
	r.Calls.DeleteStatus.Add(1)
	r.statuses.Delete(uintptr(s))
}

// StatusCode implements ports.Runtime.
func (r *Runtime) StatusCode(s domain.NativeStatus) domain.Code {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return domain.CodeInvalidArgument
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	return st.code
}

// StatusMessage implements ports.Runtime.
func (r *Runtime) StatusMessage(s domain.NativeStatus) string {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return "invalid status handle"
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	return st.message
}

// NewContextOptions implements ports.Runtime.
func (r *Runtime) NewContextOptions() domain.NativeOptions {
	r.Calls.NewContextOptions.Add(1)
	return domain.NativeOptions(r.options.Put(struct{}{}))
}

// DeleteContextOptions implements ports.Runtime.
func (r *Runtime) DeleteContextOptions(o domain.NativeOptions) {
	r.Calls.DeleteContextOptions.Add(1)
	r.options.Delete(uintptr(o))
}

// SetAsync implements ports.Runtime.
func (r *Runtime) SetAsync(domain.NativeOptions, bool) {}

// SetDevicePlacementPolicy implements ports.Runtime.
func (r *Runtime) SetDevicePlacementPolicy(domain.NativeOptions, domain.DevicePlacementPolicy) {}

// SetConfig implements ports.Runtime.
// Any payload starting with 0xff is rejected as malformed.
func (r *Runtime) SetConfig(_ domain.NativeOptions, proto []byte, s domain.NativeStatus) {
	r.Calls.SetConfig.Add(1)

	if len(proto) > 0 && proto[0] == 0xff {
		r.SetStatus(s, domain.CodeInvalidArgument, "malformed session config")
		return
	}

	r.SetStatus(s, domain.CodeOK, "")
}

// NewContext implements ports.Runtime.
func (r *Runtime) NewContext(o domain.NativeOptions, s domain.NativeStatus) domain.NativeContext {
	r.Calls.NewContext.Add(1)

	r.mu.Lock()
	delay := r.delay
	f := r.fail
	if f != nil && !f.sticky {
		r.fail = nil
	}
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if f != nil {
		r.SetStatus(s, f.code, f.message)
		if f.leak {
			return domain.NativeContext(r.contexts.Put(struct{}{}))
		}

		return 0
	}

	if _, ok := r.options.Get(uintptr(o)); !ok {
		r.SetStatus(s, domain.CodeInvalidArgument, "invalid context options handle")
		return 0
	}

	r.SetStatus(s, domain.CodeOK, "")

	return domain.NativeContext(r.contexts.Put(struct{}{}))
}

// DeleteContext implements ports.Runtime.
func (r *Runtime) DeleteContext(c domain.NativeContext) {
	r.Calls.DeleteContext.Add(1)

	if _, ok := r.contexts.Delete(uintptr(c)); ok {
		r.mu.Lock()
		r.deleted = append(r.deleted, c)
		r.mu.Unlock()
	}
}

func (r *Runtime) arm(f *failure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fail = f
}
