//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/fake"
	"github.com/jsamuelsen/go-eager-context/internal/app/execctx"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
)

// testContext holds state shared across step definitions within a scenario.
type testContext struct {
	rt     *fake.Runtime
	global *execctx.Global

	handles map[string]*execctx.Handle
	results []domain.NativeContext
	errs    []error
	err     error

	unit    context.Context
	release func()
}

// reset releases everything a scenario acquired.
func (tc *testContext) reset() {
	for _, h := range tc.handles {
		_ = h.Close()
	}

	if tc.global != nil {
		_ = tc.global.Close()
	}

	if tc.release != nil {
		tc.release()
	}

	*tc = testContext{handles: make(map[string]*execctx.Handle)}
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &testContext{handles: make(map[string]*execctx.Handle)}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a counting runtime$`, tc.aCountingRuntime)
	ctx.Step(`^the runtime takes (\d+) milliseconds to allocate a context$`, tc.theRuntimeTakes)
	ctx.Step(`^the runtime fails context allocation with "([^"]*)"$`, tc.theRuntimeFails)
	ctx.Step(`^the runtime fails context allocation with "([^"]*)" but returns a context$`, tc.theRuntimeFailsLeaking)
	ctx.Step(`^(\d+) callers request the global context at the same time$`, tc.callersRequestTheGlobalContext)
	ctx.Step(`^every caller receives the same context$`, tc.everyCallerReceivesTheSameContext)
	ctx.Step(`^every caller receives the error "([^"]*)"$`, tc.everyCallerReceivesTheError)
	ctx.Step(`^the runtime allocated (\d+) contexts?$`, tc.theRuntimeAllocated)
	ctx.Step(`^the runtime released (\d+) contexts?$`, tc.theRuntimeReleased)
	ctx.Step(`^the runtime holds (\d+) options objects?$`, tc.theRuntimeHoldsOptions)
	ctx.Step(`^the runtime holds (\d+) contexts?$`, tc.theRuntimeHoldsContexts)
	ctx.Step(`^a handle "([^"]*)" created with default options$`, tc.aHandleCreatedWithDefaultOptions)
	ctx.Step(`^a handle is created with default options$`, tc.aHandleIsCreated)
	ctx.Step(`^"([^"]*)" is moved into "([^"]*)"$`, tc.isMovedInto)
	ctx.Step(`^"([^"]*)" is closed$`, tc.isClosed)
	ctx.Step(`^creation fails with the runtime message "([^"]*)"$`, tc.failsWithRuntimeMessage)
	ctx.Step(`^a unit of work whose status reads "([^"]*)"$`, tc.aUnitOfWorkWhoseStatusReads)
	ctx.Step(`^the status is checked$`, tc.theStatusIsChecked)
	ctx.Step(`^the check fails with the runtime message "([^"]*)"$`, tc.failsWithRuntimeMessage)
}

func (tc *testContext) aCountingRuntime() error {
	tc.rt = fake.New()
	tc.global = execctx.NewGlobal(tc.rt)

	return nil
}

func (tc *testContext) theRuntimeTakes(ms int) error {
	tc.rt.SetNewContextDelay(time.Duration(ms) * time.Millisecond)
	return nil
}

func (tc *testContext) theRuntimeFails(msg string) error {
	tc.rt.FailNextContext(domain.CodeUnavailable, msg)
	return nil
}

func (tc *testContext) theRuntimeFailsLeaking(msg string) error {
	tc.rt.FailNextContextLeaking(domain.CodeInternal, msg)
	return nil
}

// callersRequestTheGlobalContext race-starts n first-time callers.
func (tc *testContext) callersRequestTheGlobalContext(n int) error {
	tc.results = make([]domain.NativeContext, n)
	tc.errs = make([]error, n)

	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			<-start
			tc.results[i], tc.errs[i] = tc.global.Context(context.Background())
		})
	}

	close(start)
	wg.Wait()

	return nil
}

func (tc *testContext) everyCallerReceivesTheSameContext() error {
	for i, err := range tc.errs {
		if err != nil {
			return fmt.Errorf("caller %d: %w", i, err)
		}
	}

	first := tc.results[0]
	if first.IsNull() {
		return errors.New("caller 0 received a null context")
	}

	for i, c := range tc.results {
		if c != first {
			return fmt.Errorf("caller %d received context %d, caller 0 received %d", i, c, first)
		}
	}

	return nil
}

func (tc *testContext) everyCallerReceivesTheError(msg string) error {
	for i, err := range tc.errs {
		if err == nil {
			return fmt.Errorf("caller %d succeeded", i)
		}

		if err.Error() != msg {
			return fmt.Errorf("caller %d: expected %q, got %q", i, msg, err.Error())
		}
	}

	return nil
}

func (tc *testContext) theRuntimeAllocated(n int) error {
	return expectCount("NewContext calls", int64(n), tc.rt.Calls.NewContext.Load())
}

func (tc *testContext) theRuntimeReleased(n int) error {
	return expectCount("released contexts", int64(n), int64(len(tc.rt.Deleted())))
}

func (tc *testContext) theRuntimeHoldsOptions(n int) error {
	return expectCount("live options", int64(n), int64(tc.rt.LiveOptions()))
}

func (tc *testContext) theRuntimeHoldsContexts(n int) error {
	return expectCount("live contexts", int64(n), int64(tc.rt.LiveContexts()))
}

func (tc *testContext) aHandleCreatedWithDefaultOptions(name string) error {
	h, err := execctx.New(context.Background(), tc.rt, nil)
	if err != nil {
		return err
	}

	tc.handles[name] = h

	return nil
}

func (tc *testContext) aHandleIsCreated() error {
	h, err := execctx.New(context.Background(), tc.rt, nil)
	if h != nil {
		tc.handles["created"] = h
	}

	tc.err = err

	return nil
}

func (tc *testContext) isMovedInto(from, to string) error {
	src, ok := tc.handles[from]
	if !ok {
		return fmt.Errorf("no handle %q", from)
	}

	tc.handles[to] = src.Move()

	return nil
}

func (tc *testContext) isClosed(name string) error {
	h, ok := tc.handles[name]
	if !ok {
		return fmt.Errorf("no handle %q", name)
	}

	return h.Close()
}

func (tc *testContext) failsWithRuntimeMessage(msg string) error {
	if tc.err == nil {
		return errors.New("expected a runtime failure, got none")
	}

	var failure *domain.RuntimeFailure
	if !errors.As(tc.err, &failure) {
		return fmt.Errorf("expected *domain.RuntimeFailure, got %T: %v", tc.err, tc.err)
	}

	if failure.Message != msg || tc.err.Error() != msg {
		return fmt.Errorf("expected message %q, got %q", msg, tc.err.Error())
	}

	return nil
}

func (tc *testContext) aUnitOfWorkWhoseStatusReads(msg string) error {
	tc.unit, tc.release = execctx.WithStatus(context.Background(), tc.rt)
	tc.rt.SetStatus(execctx.Status(tc.unit), domain.CodeInternal, msg)

	return nil
}

func (tc *testContext) theStatusIsChecked() error {
	tc.err = execctx.CheckStatus(tc.rt, execctx.Status(tc.unit))
	return nil
}

func expectCount(what string, want, got int64) error {
	if want != got {
		return fmt.Errorf("expected %d %s, got %d", want, what, got)
	}

	return nil
}

// TestFeatures runs the GoDog BDD test suite.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
