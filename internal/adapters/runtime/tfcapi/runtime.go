//go:build tensorflow && cgo

// Package tfcapi implements ports.Runtime on the TensorFlow C API.
//
// All cgo lives in this package. Native pointers never leave it: callers see
// opaque handles resolved through per-kind tables, so no uintptr is ever
// converted back into a pointer. Build with -tags tensorflow against an
// installed libtensorflow.
package tfcapi

/*
#cgo LDFLAGS: -ltensorflow
#include <stdlib.h>
#include <tensorflow/c/c_api.h>
#include <tensorflow/c/eager/c_api.h>
*/
import "C"

import (
	"unsafe"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/handles"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// Name is the registry name of this backend.
const Name = "tensorflow"

// Runtime drives libtensorflow's eager C API.
type Runtime struct {
	statuses *handles.Table[*C.TF_Status]
	options  *handles.Table[*C.TFE_ContextOptions]
	contexts *handles.Table[*C.TFE_Context]
}

var _ ports.Runtime = (*Runtime)(nil)

// New creates a TensorFlow C API runtime.
func New() *Runtime {
	return &Runtime{
		statuses: handles.NewTable[*C.TF_Status](),
		options:  handles.NewTable[*C.TFE_ContextOptions](),
		contexts: handles.NewTable[*C.TFE_Context](),
	}
}

// Version returns the linked libtensorflow version.
func Version() string {
	return C.GoString(C.TF_Version())
}

// Name implements ports.Runtime.
func (r *Runtime) Name() string { return Name }

// NewStatus implements ports.Runtime.
func (r *Runtime) NewStatus() domain.NativeStatus {
	return domain.NativeStatus(r.statuses.Put(C.TF_NewStatus()))
}

// DeleteStatus implements ports.Runtime.
func (r *Runtime) DeleteStatus(s domain.NativeStatus) {
	if st, ok := r.statuses.Delete(uintptr(s)); ok {
		C.TF_DeleteStatus(st)
	}
}

// StatusCode implements ports.Runtime.
func (r *Runtime) StatusCode(s domain.NativeStatus) domain.Code {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return domain.CodeInvalidArgument
	}

	return domain.Code(C.TF_GetCode(st))
}

// StatusMessage implements ports.Runtime.
func (r *Runtime) StatusMessage(s domain.NativeStatus) string {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return "invalid status handle"
	}

	return C.GoString(C.TF_Message(st))
}

// NewContextOptions implements ports.Runtime.
func (r *Runtime) NewContextOptions() domain.NativeOptions {
	return domain.NativeOptions(r.options.Put(C.TFE_NewContextOptions()))
}

// DeleteContextOptions implements ports.Runtime.
func (r *Runtime) DeleteContextOptions(o domain.NativeOptions) {
	if opts, ok := r.options.Delete(uintptr(o)); ok {
		C.TFE_DeleteContextOptions(opts)
	}
}

// SetAsync implements ports.Runtime.
func (r *Runtime) SetAsync(o domain.NativeOptions, enable bool) {
	opts, ok := r.options.Get(uintptr(o))
	if !ok {
		return
	}

	var v C.uchar
	if enable {
		v = 1
	}

	C.TFE_ContextOptionsSetAsync(opts, v)
}

// SetDevicePlacementPolicy implements ports.Runtime.
func (r *Runtime) SetDevicePlacementPolicy(o domain.NativeOptions, policy domain.DevicePlacementPolicy) {
	opts, ok := r.options.Get(uintptr(o))
	if !ok {
		return
	}

	C.TFE_ContextOptionsSetDevicePlacementPolicy(opts, C.TFE_ContextDevicePlacementPolicy(policy))
}

// SetConfig implements ports.Runtime.
func (r *Runtime) SetConfig(o domain.NativeOptions, proto []byte, s domain.NativeStatus) {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return
	}

	opts, ok := r.options.Get(uintptr(o))
	if !ok {
		setStatus(st, domain.CodeInvalidArgument, "invalid context options handle")
		return
	}

	if len(proto) == 0 {
		C.TFE_ContextOptionsSetConfig(opts, nil, 0, st)
		return
	}

	buf := C.CBytes(proto)
	defer C.free(buf)

	C.TFE_ContextOptionsSetConfig(opts, buf, C.size_t(len(proto)), st)
}

// NewContext implements ports.Runtime.
func (r *Runtime) NewContext(o domain.NativeOptions, s domain.NativeStatus) domain.NativeContext {
	st, ok := r.statuses.Get(uintptr(s))
	if !ok {
		return 0
	}

	opts, ok := r.options.Get(uintptr(o))
	if !ok {
		setStatus(st, domain.CodeInvalidArgument, "invalid context options handle")
		return 0
	}

	c := C.TFE_NewContext(opts, st)
	if c == nil {
		return 0
	}

	return domain.NativeContext(r.contexts.Put(c))
}

// DeleteContext implements ports.Runtime.
func (r *Runtime) DeleteContext(h domain.NativeContext) {
	if c, ok := r.contexts.Delete(uintptr(h)); ok {
		C.TFE_DeleteContext(c)
	}
}

// Context resolves a handle to the native TFE_Context for cgo callers in the
// tensor layer. The pointer is only valid until the handle is released.
func (r *Runtime) Context(h domain.NativeContext) (unsafe.Pointer, bool) {
	c, ok := r.contexts.Get(uintptr(h))
	if !ok {
		return nil, false
	}

	return unsafe.Pointer(c), true
}

// Status resolves a handle to the native TF_Status for cgo callers.
func (r *Runtime) Status(h domain.NativeStatus) (unsafe.Pointer, bool) {
	st, ok := r.statuses.Get(uintptr(h))
	if !ok {
		return nil, false
	}

	return unsafe.Pointer(st), true
}

func setStatus(st *C.TF_Status, code domain.Code, msg string) {
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))

	C.TF_SetStatus(st, C.TF_Code(code), cmsg)
}
