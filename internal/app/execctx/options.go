package execctx

import (
	"context"
	"sync"

	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// Settings configures the options a context is created from.
type Settings struct {
	// Async enables asynchronous op dispatch.
	Async bool
	// DevicePlacement decides what happens when an op's inputs live on
	// another device.
	DevicePlacement domain.DevicePlacementPolicy
	// Config is a serialized session configuration. Empty leaves the
	// runtime's defaults in place.
	Config []byte
}

// DefaultSettings returns the settings used when no options are given:
// synchronous dispatch and silent placement.
func DefaultSettings() Settings {
	return Settings{
		Async:           false,
		DevicePlacement: domain.PlacementSilent,
	}
}

// Options owns a native context-options object.
type Options struct {
	noCopy noCopy

	mu     sync.Mutex
	rt     ports.Runtime
	native domain.NativeOptions
}

// NewOptions allocates options on rt and applies s. The options object is
// released again if any setting is rejected.
func NewOptions(ctx context.Context, rt ports.Runtime, s Settings) (*Options, error) {
	if rt == nil {
		return nil, domain.ErrRuntimeMissing
	}

	if !s.DevicePlacement.Valid() {
		return nil, domain.NewRuntimeFailure(domain.CodeInvalidArgument,
			"invalid device placement policy "+s.DevicePlacement.String())
	}

	native := rt.NewContextOptions()
	rt.SetAsync(native, s.Async)
	rt.SetDevicePlacementPolicy(native, s.DevicePlacement)

	if len(s.Config) > 0 {
		status, release := statusFor(ctx, rt)
		defer release()

		rt.SetConfig(native, s.Config, status)

		if err := CheckStatus(rt, status); err != nil {
			rt.DeleteContextOptions(native)
			return nil, err
		}
	}

	return &Options{rt: rt, native: native}, nil
}

// Native returns the underlying handle, or null after Close.
func (o *Options) Native() domain.NativeOptions {
	if o == nil {
		return 0
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	return o.native
}

// Close releases the options. Contexts already created from them are
// unaffected. Close is idempotent.
func (o *Options) Close() {
	if o == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.native.IsNull() {
		return
	}

	o.rt.DeleteContextOptions(o.native)
	o.native = 0
}
