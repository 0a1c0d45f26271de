package execctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/platform/logging"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/go-eager-context/internal/app/execctx"

// Handle exclusively owns one native execution context.
//
// A Handle must not be copied; use Move or MoveFrom to transfer ownership.
// The zero Handle is empty and valid to Close. Handle methods are not safe
// for concurrent use; the owner serializes access.
type Handle struct {
	noCopy noCopy

	rt     ports.Runtime
	native domain.NativeContext
	id     uuid.UUID
	logger *slog.Logger
}

// New creates an execution context on rt. A nil opts uses DefaultSettings;
// the temporary options are released before New returns, whatever the
// outcome. A non-nil opts must come from rt and stays owned by the caller.
//
// On failure the error is a *domain.RuntimeFailure carrying the runtime's
// message and no native context is left allocated.
func New(ctx context.Context, rt ports.Runtime, opts *Options) (*Handle, error) {
	if rt == nil {
		return nil, domain.ErrRuntimeMissing
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "execctx.New")
	defer span.End()

	span.SetAttributes(attribute.String("runtime", rt.Name()))

	native, err := allocate(ctx, rt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	h := &Handle{
		rt:     rt,
		native: native,
		id:     uuid.New(),
	}
	h.logger = logging.FromContext(ctx).With(
		slog.String("handle_id", h.id.String()),
		slog.String("runtime", rt.Name()),
	)

	span.SetAttributes(attribute.String("handle_id", h.id.String()))
	h.logger.DebugContext(ctx, "execution context created")

	return h, nil
}

func allocate(ctx context.Context, rt ports.Runtime, opts *Options) (domain.NativeContext, error) {
	if opts == nil {
		tmp, err := NewOptions(ctx, rt, DefaultSettings())
		if err != nil {
			return 0, err
		}
		defer tmp.Close()

		opts = tmp
	}

	nativeOpts := opts.Native()
	if nativeOpts.IsNull() {
		return 0, fmt.Errorf("context options: %w", domain.ErrClosed)
	}

	status, release := statusFor(ctx, rt)
	defer release()

	native := rt.NewContext(nativeOpts, status)

	if err := CheckStatus(rt, status); err != nil {
		// Some runtimes hand back a live context alongside the failure.
		if !native.IsNull() {
			rt.DeleteContext(native)
		}

		return 0, err
	}

	if native.IsNull() {
		return 0, domain.NewRuntimeFailure(domain.CodeInternal, "runtime returned a null context without an error")
	}

	return native, nil
}

// Move transfers ownership to a new Handle and leaves h empty.
func (h *Handle) Move() *Handle {
	out := &Handle{}
	out.MoveFrom(h)

	return out
}

// MoveFrom releases h's current context, if any, then takes ownership of
// src's context and leaves src empty. Moving a handle into itself does
// nothing, and so does moving into or out of a nil handle.
func (h *Handle) MoveFrom(src *Handle) {
	if h == nil || h == src || src == nil {
		return
	}

	h.Close()

	h.rt, h.native, h.id, h.logger = src.rt, src.native, src.id, src.logger
	src.rt, src.native, src.id, src.logger = nil, 0, uuid.Nil, nil
}

// Close deletes the owned context. Close on an empty or nil handle is a
// no-op, so it is safe to call more than once.
func (h *Handle) Close() error {
	if h == nil || h.native.IsNull() {
		return nil
	}

	h.rt.DeleteContext(h.native)

	if h.logger != nil {
		h.logger.Debug("execution context deleted")
	}

	h.native = 0

	return nil
}

// Native returns the owned context, or null for an empty handle.
func (h *Handle) Native() domain.NativeContext {
	if h == nil {
		return 0
	}

	return h.native
}

// Valid reports whether h owns a context.
func (h *Handle) Valid() bool {
	return !h.Native().IsNull()
}

// ID returns the handle's identifier, assigned at creation and carried
// through moves. It is uuid.Nil for an empty handle.
func (h *Handle) ID() uuid.UUID {
	if h == nil {
		return uuid.Nil
	}

	return h.id
}

// Runtime returns the runtime that owns the context, or nil for an empty handle.
func (h *Handle) Runtime() ports.Runtime {
	if h == nil {
		return nil
	}

	return h.rt
}

// closeAll closes every handle, joining any errors.
func closeAll(hs []*Handle) error {
	var errs []error
	for _, h := range hs {
		errs = append(errs, h.Close())
	}

	return errors.Join(errs...)
}
