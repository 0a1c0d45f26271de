// Package ports defines the interfaces between the execution-context lifecycle
// and its collaborators: the native runtime it drives and the health
// aggregation it reports to.
package ports

import "github.com/jsamuelsen/go-eager-context/internal/domain"

// Runtime is the capability consumed from a tensor runtime backend.
//
// Every method mirrors one native entry point. Methods that can fail report
// through the status handle they are given rather than returning an error, so
// callers must inspect the status right after the call. Deleting a null
// handle must be a no-op.
//
// Implementations must be safe for concurrent use; a single status handle is
// only ever used by one unit of work at a time.
type Runtime interface {
	// Name identifies the backend in logs, metrics and the backend registry.
	Name() string

	// NewStatus allocates a status object initialized to OK.
	NewStatus() domain.NativeStatus
	// DeleteStatus releases a status object.
	DeleteStatus(status domain.NativeStatus)
	// StatusCode reads the code last written to status.
	StatusCode(status domain.NativeStatus) domain.Code
	// StatusMessage reads the message last written to status.
	StatusMessage(status domain.NativeStatus) string

	// NewContextOptions allocates a context-options object with runtime defaults.
	NewContextOptions() domain.NativeOptions
	// DeleteContextOptions releases a context-options object.
	DeleteContextOptions(opts domain.NativeOptions)
	// SetAsync toggles asynchronous op dispatch for contexts created from opts.
	SetAsync(opts domain.NativeOptions, enable bool)
	// SetDevicePlacementPolicy sets the placement policy for contexts created from opts.
	SetDevicePlacementPolicy(opts domain.NativeOptions, policy domain.DevicePlacementPolicy)
	// SetConfig applies a serialized session configuration to opts.
	SetConfig(opts domain.NativeOptions, proto []byte, status domain.NativeStatus)

	// NewContext allocates an execution context. On failure the status is
	// non-OK and the returned handle must not be used.
	NewContext(opts domain.NativeOptions, status domain.NativeStatus) domain.NativeContext
	// DeleteContext releases an execution context.
	DeleteContext(ctx domain.NativeContext)
}
