package middleware_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/infra/storage/memory"
	"rentdesk/internal/infra/validation"
)

type noteCommand struct {
	OrgID      string `validate:"required"`
	PropertyID string
	Text       string `validate:"max=5"`
	IdemKey    string
	Fail       bool
}

func (c noteCommand) Key() string            { return "test.note" }
func (c noteCommand) TenantID() string       { return c.OrgID }
func (c noteCommand) IdempotencyKey() string { return c.IdemKey }
func (c noteCommand) ResultPrototype() any   { return &noteResult{} }
func (c noteCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PropertyID: c.PropertyID}
}

type noteResult struct {
	Seq int `json:"seq"`
}

type flusherStub struct {
	calls atomic.Int32
	err   error
}

func (f *flusherStub) Flush(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func newBus(handler func(ctx context.Context, cmd noteCommand) (*noteResult, error)) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, noteCommand{}.Key(), commands.HandlerFunc[noteCommand, *noteResult](handler))
	return bus
}

func TestIdempotencyReplaysOnlySuccessfulResults(t *testing.T) {
	var calls atomic.Int32
	bus := newBus(func(ctx context.Context, cmd noteCommand) (*noteResult, error) {
		n := int(calls.Add(1))
		if cmd.Fail {
			return nil, errors.New("boom")
		}
		return &noteResult{Seq: n}, nil
	})
	chain := middleware.ChainCommands(bus, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	ctx := context.Background()

	first, err := commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", IdemKey: "k1"})
	require.NoError(t, err)
	again, err := commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", IdemKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first.Seq, again.Seq)
	assert.Equal(t, int32(1), calls.Load())

	_, err = commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", IdemKey: "k2", Fail: true})
	require.Error(t, err)
	retried, err := commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", IdemKey: "k2"})
	require.NoError(t, err)
	assert.Equal(t, 3, retried.Seq)

	_, err = commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o"})
	require.NoError(t, err)
	_, err = commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o"})
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())
}

func TestIdempotencyKeysAreScopedToOrganisation(t *testing.T) {
	var calls atomic.Int32
	bus := newBus(func(ctx context.Context, cmd noteCommand) (*noteResult, error) {
		return &noteResult{Seq: int(calls.Add(1))}, nil
	})
	chain := middleware.ChainCommands(bus,
		middleware.Authorization(middleware.TenantAuthorizer{}),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
	)
	ctx := context.Background()

	first, err := commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "org-1", Text: "a", IdemKey: "k1"})
	require.NoError(t, err)

	other, err := commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "org-2", Text: "a", IdemKey: "k1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Seq, other.Seq)

	_, err = commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{Text: "a", IdemKey: "k1"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyRejectsKeyReusedForDifferentRequest(t *testing.T) {
	bus := newBus(func(ctx context.Context, cmd noteCommand) (*noteResult, error) {
		return &noteResult{Seq: 1}, nil
	})
	chain := middleware.ChainCommands(bus, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	ctx := context.Background()

	_, err := commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", Text: "a", IdemKey: "k1"})
	require.NoError(t, err)
	_, err = commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", Text: "b", IdemKey: "k1"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "idempotency_key", verr.Field)
}

func TestAuthorizationAndValidationStopBeforeHandler(t *testing.T) {
	var calls atomic.Int32
	bus := newBus(func(context.Context, noteCommand) (*noteResult, error) {
		calls.Add(1)
		return &noteResult{}, nil
	})
	chain := middleware.ChainCommands(bus,
		middleware.Authorization(middleware.TenantAuthorizer{}),
		middleware.Validation(validation.New()),
	)
	ctx := context.Background()

	_, err := chain.Dispatch(ctx, noteCommand{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = chain.Dispatch(ctx, noteCommand{OrgID: "o", Text: "far too long"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, calls.Load())

	_, err = chain.Dispatch(ctx, noteCommand{OrgID: "o", Text: "ok"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

type validatorFunc func(ctx context.Context, message any) error

func (f validatorFunc) Validate(ctx context.Context, message any) error { return f(ctx, message) }

func TestValidationReportsForeignErrorsAsValidation(t *testing.T) {
	bus := newBus(func(context.Context, noteCommand) (*noteResult, error) {
		return &noteResult{}, nil
	})
	chain := middleware.ChainCommands(bus, middleware.Validation(validatorFunc(func(context.Context, any) error {
		return errors.New("unsupported message")
	})))

	_, err := chain.Dispatch(context.Background(), noteCommand{OrgID: "o"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "test.note", verr.Field)
	assert.Equal(t, "unsupported message", verr.Message)

	cancelled := middleware.ChainCommands(bus, middleware.Validation(validatorFunc(func(ctx context.Context, _ any) error {
		return ctx.Err()
	})))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cancelled.Dispatch(ctx, noteCommand{OrgID: "o"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperr.ErrValidation)
}

func TestTransactionBindsUnitAndNestedDispatchJoinsIt(t *testing.T) {
	factory := memory.Factory{Store: memory.NewStore()}
	var (
		outer uow.UnitOfWork
		chain commands.Bus
	)
	bus := newBus(func(ctx context.Context, cmd noteCommand) (*noteResult, error) {
		unit, ok := uow.FromContext(ctx)
		require.True(t, ok)
		if cmd.Text == "outer" {
			outer = unit
			return commands.Dispatch[noteCommand, *noteResult](ctx, chain, noteCommand{OrgID: "o", Text: "inner"})
		}
		assert.Same(t, outer, unit)
		return &noteResult{Seq: 7}, nil
	})
	chain = middleware.ChainCommands(bus, middleware.Transaction(factory, nil))

	res, err := commands.Dispatch[noteCommand, *noteResult](context.Background(), chain, noteCommand{OrgID: "o", Text: "outer"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Seq)
	require.NotNil(t, outer)
}

func TestOutboxFlushNeverFailsCommittedCommand(t *testing.T) {
	bus := newBus(func(_ context.Context, cmd noteCommand) (*noteResult, error) {
		if cmd.Fail {
			return nil, errors.New("boom")
		}
		return &noteResult{Seq: 1}, nil
	})
	flusher := &flusherStub{err: errors.New("broker down")}
	chain := middleware.ChainCommands(bus, middleware.OutboxFlush(flusher, nil))

	res, err := commands.Dispatch[noteCommand, *noteResult](context.Background(), chain, noteCommand{OrgID: "o"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Seq)
	assert.Equal(t, int32(1), flusher.calls.Load())

	_, err = chain.Dispatch(context.Background(), noteCommand{OrgID: "o", Fail: true})
	require.Error(t, err)
	assert.Equal(t, int32(1), flusher.calls.Load())
}

func TestPropertyLockSerializesCommandsOnOneProperty(t *testing.T) {
	var active, peak atomic.Int32
	bus := newBus(func(context.Context, noteCommand) (*noteResult, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return &noteResult{}, nil
	})
	chain := middleware.ChainCommands(bus, middleware.PropertyLock(memory.NewLocker(), nil, nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := chain.Dispatch(context.Background(), noteCommand{OrgID: "o", PropertyID: "p-1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestChainCommandsRunsOutermostFirstAndSkipsNil(t *testing.T) {
	var order []string
	record := func(name string) middleware.CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return busFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := newBus(func(context.Context, noteCommand) (*noteResult, error) {
		order = append(order, "handler")
		return &noteResult{}, nil
	})
	chain := middleware.ChainCommands(bus, record("a"), nil, record("b"))
	_, err := chain.Dispatch(context.Background(), noteCommand{OrgID: "o"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

type busFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f busFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) { return f(ctx, cmd) }
