package queries_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app/queries"
)

type occupancyQuery struct{ PropertyID string }

func (occupancyQuery) Key() string { return "properties.occupancy" }

func TestAskReturnsTypedResult(t *testing.T) {
	bus := queries.NewInMemoryBus()
	queries.RegisterHandler[occupancyQuery, int](bus, "properties.occupancy",
		queries.HandlerFunc[occupancyQuery, int](func(_ context.Context, q occupancyQuery) (int, error) {
			return len(q.PropertyID), nil
		}))

	got, err := queries.Ask[occupancyQuery, int](context.Background(), bus, occupancyQuery{PropertyID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, []string{"properties.occupancy"}, bus.Keys())

	_, err = queries.Ask[occupancyQuery, string](context.Background(), bus, occupancyQuery{})
	require.ErrorIs(t, err, queries.ErrResultType)
	assert.Contains(t, err.Error(), "properties.occupancy returned int, want string")
}

func TestAskFailures(t *testing.T) {
	bus := queries.NewInMemoryBus()
	_, err := bus.Ask(context.Background(), occupancyQuery{})
	require.ErrorIs(t, err, queries.ErrHandlerNotFound)

	_, err = bus.Ask(context.Background(), nil)
	require.ErrorIs(t, err, queries.ErrInvalidQuery)

	_, err = queries.Ask[occupancyQuery, int](context.Background(), nil, occupancyQuery{})
	require.ErrorIs(t, err, queries.ErrNilBus)

	h := queries.HandlerFunc[occupancyQuery, int](func(context.Context, occupancyQuery) (int, error) { return 0, nil })
	queries.RegisterHandler[occupancyQuery, int](bus, "properties.occupancy", h)
	assert.Panics(t, func() {
		queries.RegisterHandler[occupancyQuery, int](bus, "properties.occupancy", h)
	})
}
