package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	PropertiesRepo *PropertyRepository
	BookingsRepo   *BookingRepository
	PaymentsRepo   *PaymentRepository
	OutboxStore    *OutboxStore
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:             db,
		PropertiesRepo: NewPropertyRepository(db),
		BookingsRepo:   NewBookingRepository(db),
		PaymentsRepo:   NewPaymentRepository(db),
		OutboxStore:    NewOutboxStore(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:    session,
		properties: f.PropertiesRepo,
		bookings:   f.BookingsRepo,
		payments:   f.PaymentsRepo,
		outbox:     f.OutboxStore,
	}, nil
}

type Unit struct {
	session mongo.Session

	properties *PropertyRepository
	bookings   *BookingRepository
	payments   *PaymentRepository
	outbox     *OutboxStore
}

func (u *Unit) Properties() properties.Repository { return u.properties }
func (u *Unit) Bookings() booking.Repository       { return u.bookings }
func (u *Unit) Payments() payments.Repository      { return u.payments }
func (u *Unit) Outbox() appoutbox.Outbox           { return u.outbox }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
