package execctx

import (
	"context"
	"runtime"
	"sync"

	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

type statusKey struct{}

// StatusCell holds the status object of one unit of work.
type StatusCell struct {
	state *cellState
}

// cellState is split from StatusCell so the cleanup can reach it without
// keeping the cell alive.
type cellState struct {
	mu       sync.Mutex
	rt       ports.Runtime
	handle   domain.NativeStatus
	released bool
}

func newStatusCell(rt ports.Runtime) *StatusCell {
	cell := &StatusCell{state: &cellState{rt: rt}}
	runtime.AddCleanup(cell, (*cellState).release, cell.state)

	return cell
}

// WithStatus opens a unit of work bound to rt. The returned release function
// deletes the unit's status object; it is idempotent. Release must be called
// when the unit ends; a garbage-collected, unreleased cell is released as a
// last resort.
func WithStatus(ctx context.Context, rt ports.Runtime) (context.Context, func()) {
	cell := newStatusCell(rt)

	return context.WithValue(ctx, statusKey{}, cell), cell.Release
}

// StatusCellFromContext returns the unit's cell, or nil outside a unit.
func StatusCellFromContext(ctx context.Context) *StatusCell {
	if ctx == nil {
		return nil
	}

	cell, _ := ctx.Value(statusKey{}).(*StatusCell)

	return cell
}

// Status returns the status handle of the unit of work in ctx, allocating it
// on first access. It returns the null handle outside a unit or after the
// unit was released.
func Status(ctx context.Context) domain.NativeStatus {
	cell := StatusCellFromContext(ctx)
	if cell == nil {
		return 0
	}

	return cell.Handle()
}

// Handle returns the cell's status handle, allocating it on first access.
func (c *StatusCell) Handle() domain.NativeStatus {
	s := c.state

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return 0
	}

	if s.handle.IsNull() {
		s.handle = s.rt.NewStatus()
	}

	return s.handle
}

// Runtime returns the runtime the cell's status belongs to.
func (c *StatusCell) Runtime() ports.Runtime {
	return c.state.rt
}

// Release deletes the status object if one was allocated.
func (c *StatusCell) Release() {
	c.state.release()
}

func (s *cellState) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}

	s.released = true

	if !s.handle.IsNull() {
		s.rt.DeleteStatus(s.handle)
		s.handle = 0
	}
}

// statusFor returns a status for rt. It reuses the unit in ctx when that unit
// belongs to rt and otherwise opens a transient unit released by the returned
// function.
func statusFor(ctx context.Context, rt ports.Runtime) (domain.NativeStatus, func()) {
	if cell := StatusCellFromContext(ctx); cell != nil && cell.Runtime() == rt {
		if h := cell.Handle(); !h.IsNull() {
			return h, func() {}
		}
	}

	cell := newStatusCell(rt)

	return cell.Handle(), cell.Release
}
