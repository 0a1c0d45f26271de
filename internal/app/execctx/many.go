package execctx

import (
	"context"
	"errors"

	"github.com/jsamuelsen/go-eager-context/internal/app"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// NewMany creates n contexts on rt with at most limit creations in flight
// (zero or less means unbounded). Each creation runs as its own unit of work.
// It is all or nothing: if any creation fails, the contexts already created
// are closed and the first failure, in creation order, is returned.
func NewMany(ctx context.Context, rt ports.Runtime, n int, opts *Options, limit int) ([]*Handle, error) {
	if rt == nil {
		return nil, domain.ErrRuntimeMissing
	}

	if n <= 0 {
		return nil, nil
	}

	fns := make([]func(context.Context) (*Handle, error), n)
	for i := range fns {
		fns[i] = func(ctx context.Context) (*Handle, error) {
			ctx, release := WithStatus(ctx, rt)
			defer release()

			return New(ctx, rt, opts)
		}
	}

	results := app.ParallelPartialLimit(ctx, limit, fns...)

	handles := make([]*Handle, 0, n)

	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}

			continue
		}

		handles = append(handles, r.Value)
	}

	if firstErr != nil {
		if closeErr := closeAll(handles); closeErr != nil {
			return nil, errors.Join(firstErr, closeErr)
		}

		return nil, firstErr
	}

	return handles, nil
}
