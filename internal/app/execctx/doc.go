// Package execctx owns the lifetime of runtime execution contexts and the
// status objects native calls report through.
//
// # Status cells
//
// Native calls report failure through a status object. Each unit of work gets
// its own, created lazily on first use and released when the unit ends:
//
//	ctx, release := execctx.WithStatus(ctx, rt)
//	defer release()
//
//	st := execctx.Status(ctx) // same handle for the whole unit
//
// A goroutine started inside a unit must open its own unit; cells are never
// shared.
//
// # Handles
//
// A Handle exclusively owns one native execution context. It cannot be copied
// (go vet reports copies); ownership moves explicitly:
//
//	h, err := execctx.New(ctx, rt, nil) // default options, released before return
//	if err != nil {
//	    return err // *domain.RuntimeFailure carrying the runtime message
//	}
//	defer h.Close()
//
//	owner := h.Move() // h is now empty; closing it is a no-op
//
// # The process-wide context
//
// GlobalContext returns the context shared by the whole process. The first
// call allocates it exactly once; concurrent first callers wait for that call.
// If the allocation fails the singleton stays failed and every later call
// returns the same error. Select the backend with Install before first use.
package execctx
