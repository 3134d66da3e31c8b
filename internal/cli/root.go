// Package cli implements the rentdesk command line.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rentdesk/internal/infra/config"
	"rentdesk/internal/infra/obs"
)

type rootOptions struct {
	json     bool
	envFiles []string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "rentdesk",
		Short: "Booking and availability engine for rental properties",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(opts.envFiles...)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output JSON")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(serveCmd())
	root.AddCommand(syncCalendarsCmd(opts))
	root.AddCommand(exportCalendarCmd())
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// withRuntime loads configuration, builds the runtime and closes it when fn returns.
// Logs go to stderr so stdout stays machine readable.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLoggerTo(cmd.ErrOrStderr(), cfg.Env)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))
	return fn(ctx, rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
