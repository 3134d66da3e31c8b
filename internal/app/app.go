// Package app assembles the command and query buses with their middleware.
package app

import (
	"log/slog"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/handlers/bookings"
	"rentdesk/internal/app/handlers/calendars"
	"rentdesk/internal/app/handlers/payments"
	"rentdesk/internal/app/handlers/properties"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/services/calendarsync"
	"rentdesk/internal/app/uow"
)

type Options struct {
	UoWFactory  uow.UoWFactory
	Idempotency middleware.IdempotencyStore
	Flusher     outbox.Flusher
	Locker      policies.Locker
	Validator   middleware.Validator
	Fetcher     policies.FeedFetcher
	Pricing     policies.PricingPort
	Encoder     outbox.EventEncoder
	Clock       policies.Clock
	Logger      *slog.Logger
	NewID       func() string

	DefaultCurrency string
	SyncTimeout     time.Duration
	SyncConcurrency int
	CancelMissing   bool
}

type Application struct {
	Commands  commands.Bus
	Queries   queries.Bus
	Calendars *calendarsync.Service
}

// New registers every handler. Command middleware, outermost first: authorization,
// idempotency, validation, outbox flush, property lock, transaction.
func New(opts Options) *Application {
	if opts.UoWFactory == nil {
		panic("app: uow factory required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	encoder := opts.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}

	bookingDeps := bookings.Deps{
		UoWFactory: opts.UoWFactory,
		Pricing:    opts.Pricing,
		Encoder:    encoder,
		Clock:      opts.Clock,
		Logger:     logger.With("component", "bookings"),
		NewID:      opts.NewID,
	}
	paymentDeps := payments.Deps{
		UoWFactory: opts.UoWFactory,
		Encoder:    encoder,
		Clock:      opts.Clock,
		Logger:     logger.With("component", "payments"),
		NewID:      opts.NewID,
	}
	propertyDeps := properties.Deps{
		UoWFactory:      opts.UoWFactory,
		Encoder:         encoder,
		Clock:           opts.Clock,
		Logger:          logger.With("component", "properties"),
		DefaultCurrency: opts.DefaultCurrency,
		NewID:           opts.NewID,
	}
	calendarDeps := calendars.Deps{
		UoWFactory: opts.UoWFactory,
		Encoder:    encoder,
		Clock:      opts.Clock,
		Logger:     logger.With("component", "calendars"),
		NewID:      opts.NewID,
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookings.CreateBookingCommand{}.Key(), &bookings.CreateBookingHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.RequestBookingCommand{}.Key(), &bookings.RequestBookingHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.ConfirmBookingCommand{}.Key(), &bookings.ConfirmBookingHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.CheckInCommand{}.Key(), &bookings.CheckInHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.CheckOutCommand{}.Key(), &bookings.CheckOutHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.CancelBookingCommand{}.Key(), &bookings.CancelBookingHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.MarkNoShowCommand{}.Key(), &bookings.MarkNoShowHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.CompleteBookingCommand{}.Key(), &bookings.CompleteBookingHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, bookings.RescheduleBookingCommand{}.Key(), &bookings.RescheduleBookingHandler{Deps: bookingDeps})
	commands.RegisterHandler(commandBus, payments.RecordPaymentCommand{}.Key(), &payments.RecordPaymentHandler{Deps: paymentDeps})
	commands.RegisterHandler(commandBus, payments.UpdatePaymentCommand{}.Key(), &payments.UpdatePaymentHandler{Deps: paymentDeps})
	commands.RegisterHandler(commandBus, payments.DeletePaymentCommand{}.Key(), &payments.DeletePaymentHandler{Deps: paymentDeps})
	commands.RegisterHandler(commandBus, payments.ReconcileBookingCommand{}.Key(), &payments.ReconcileBookingHandler{Deps: paymentDeps})
	commands.RegisterHandler(commandBus, properties.RegisterPropertyCommand{}.Key(), &properties.RegisterPropertyHandler{Deps: propertyDeps})
	commands.RegisterHandler(commandBus, properties.AddCalendarFeedCommand{}.Key(), &properties.AddCalendarFeedHandler{Deps: propertyDeps})
	commands.RegisterHandler(commandBus, calendars.UpsertExternalBookingCommand{}.Key(), &calendars.UpsertExternalBookingHandler{Deps: calendarDeps})
	commands.RegisterHandler(commandBus, calendars.CancelMissingImportsCommand{}.Key(), &calendars.CancelMissingImportsHandler{Deps: calendarDeps})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookings.GetBookingQuery{}.Key(), &bookings.GetBookingHandler{Deps: bookingDeps})
	queries.RegisterHandler(queryBus, bookings.ListBookingsQuery{}.Key(), &bookings.ListBookingsHandler{Deps: bookingDeps})
	queries.RegisterHandler(queryBus, bookings.CheckAvailabilityQuery{}.Key(), &bookings.CheckAvailabilityHandler{Deps: bookingDeps})
	queries.RegisterHandler(queryBus, bookings.QuotePriceQuery{}.Key(), &bookings.QuotePriceHandler{Deps: bookingDeps})
	queries.RegisterHandler(queryBus, bookings.PropertyCalendarQuery{}.Key(), &bookings.PropertyCalendarHandler{Deps: bookingDeps})
	queries.RegisterHandler(queryBus, payments.ListPaymentsQuery{}.Key(), &payments.ListPaymentsHandler{Deps: paymentDeps})
	queries.RegisterHandler(queryBus, properties.GetPropertyQuery{}.Key(), &properties.GetPropertyHandler{Deps: propertyDeps})
	queries.RegisterHandler(queryBus, calendars.ExportCalendarQuery{}.Key(), &calendars.ExportCalendarHandler{Deps: calendarDeps})

	var (
		idempotencyMW middleware.CommandMiddleware
		validationMW  middleware.CommandMiddleware
		flushMW       middleware.CommandMiddleware
		lockMW        middleware.CommandMiddleware
		queryValidMW  middleware.QueryMiddleware
	)
	if opts.Idempotency != nil {
		idempotencyMW = middleware.Idempotency(opts.Idempotency, nil)
	}
	if opts.Validator != nil {
		validationMW = middleware.Validation(opts.Validator)
		queryValidMW = middleware.QueryValidation(opts.Validator)
	}
	if opts.Flusher != nil {
		flushMW = middleware.OutboxFlush(opts.Flusher, logger)
	}
	if opts.Locker != nil {
		lockMW = middleware.PropertyLock(opts.Locker, support.PropertyResolver{UoWFactory: opts.UoWFactory}, logger)
	}
	authz := middleware.TenantAuthorizer{}

	commandChain := middleware.ChainCommands(
		commandBus,
		middleware.Authorization(authz),
		idempotencyMW,
		validationMW,
		flushMW,
		lockMW,
		middleware.Transaction(opts.UoWFactory, nil),
	)
	queryChain := middleware.ChainQueries(
		queryBus,
		middleware.QueryAuthorization(authz),
		queryValidMW,
	)

	return &Application{
		Commands: commandChain,
		Queries:  queryChain,
		Calendars: &calendarsync.Service{
			Commands:      commandChain,
			UoWFactory:    opts.UoWFactory,
			Fetcher:       opts.Fetcher,
			Timeout:       opts.SyncTimeout,
			Concurrency:   opts.SyncConcurrency,
			CancelMissing: opts.CancelMissing,
			Logger:        logger.With("component", "calendarsync"),
		},
	}
}
