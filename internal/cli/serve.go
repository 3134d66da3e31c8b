package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	ginserver "rentdesk/internal/infra/http/gin"
	"rentdesk/internal/infra/obs"
	"rentdesk/internal/infra/schedule"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and scheduled calendar sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, serve)
		},
	}
}

func serve(ctx context.Context, rt *Runtime) error {
	logger := rt.Logger
	a := rt.App
	server := ginserver.NewServer(rt.Config, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: rt.Ready}, ginserver.Handlers{
		Properties: ginserver.PropertyHandler{Commands: a.Commands, Queries: a.Queries},
		Bookings:   ginserver.BookingHandler{Commands: a.Commands, Queries: a.Queries},
		Payments:   ginserver.PaymentHandler{Commands: a.Commands, Queries: a.Queries},
		Calendars:  ginserver.CalendarHandler{Queries: a.Queries, Sync: a.Calendars},
		Public:     ginserver.PublicHandler{Commands: a.Commands, Queries: a.Queries},
	})

	sched := schedule.New(logger.With("component", "scheduler"), 30*time.Minute)
	if spec := rt.Config.CalendarSyncSchedule; spec != "" {
		if err := sched.Add("calendar-sync", spec, func(ctx context.Context) error {
			_, err := a.Calendars.SyncAll(ctx, "")
			return err
		}); err != nil {
			return err
		}
	}
	if rt.Purge != nil {
		if err := sched.Add("idempotency-purge", "@hourly", rt.Purge); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", rt.Config.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := rt.Worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if sched.Len() > 0 {
		g.Go(func() error { return sched.Run(gctx) })
	}
	err := g.Wait()
	logger.Info("HTTP server stopped")
	return err
}
