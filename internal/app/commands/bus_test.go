package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app/commands"
)

type renameCommand struct{ Name string }

func (renameCommand) Key() string { return "properties.rename" }

type archiveCommand struct{}

func (archiveCommand) Key() string { return "properties.archive" }

func TestDispatchReturnsTypedResult(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, string](bus, "properties.rename",
		commands.HandlerFunc[renameCommand, string](func(_ context.Context, cmd renameCommand) (string, error) {
			return "renamed to " + cmd.Name, nil
		}))

	got, err := commands.Dispatch[renameCommand, string](context.Background(), bus, renameCommand{Name: "Loft"})
	require.NoError(t, err)
	assert.Equal(t, "renamed to Loft", got)
	assert.Equal(t, []string{"properties.rename"}, bus.Keys())
}

func TestDispatchResultMismatchNamesTheCommand(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[renameCommand, string](bus, "properties.rename",
		commands.HandlerFunc[renameCommand, string](func(context.Context, renameCommand) (string, error) {
			return "ok", nil
		}))

	_, err := commands.Dispatch[renameCommand, int](context.Background(), bus, renameCommand{})
	require.ErrorIs(t, err, commands.ErrResultType)
	assert.Contains(t, err.Error(), "properties.rename returned string, want int")
}

func TestDispatchUnknownAndMisroutedCommands(t *testing.T) {
	bus := commands.NewInMemoryBus()
	_, err := bus.Dispatch(context.Background(), archiveCommand{})
	require.ErrorIs(t, err, commands.ErrHandlerNotFound)
	assert.Contains(t, err.Error(), "properties.archive")

	commands.RegisterHandler[renameCommand, string](bus, "properties.archive",
		commands.HandlerFunc[renameCommand, string](func(context.Context, renameCommand) (string, error) {
			return "", nil
		}))
	_, err = bus.Dispatch(context.Background(), archiveCommand{})
	require.ErrorIs(t, err, commands.ErrInvalidCommand)

	_, err = bus.Dispatch(context.Background(), nil)
	require.ErrorIs(t, err, commands.ErrInvalidCommand)

	_, err = commands.Dispatch[renameCommand, string](context.Background(), nil, renameCommand{})
	require.ErrorIs(t, err, commands.ErrNilBus)
}

func TestRegisterSameKeyTwicePanics(t *testing.T) {
	bus := commands.NewInMemoryBus()
	h := commands.HandlerFunc[renameCommand, string](func(context.Context, renameCommand) (string, error) { return "", nil })
	commands.RegisterHandler[renameCommand, string](bus, "properties.rename", h)
	assert.Panics(t, func() {
		commands.RegisterHandler[renameCommand, string](bus, "properties.rename", h)
	})
	assert.Panics(t, func() { bus.RegisterRaw("", nil) })
}
