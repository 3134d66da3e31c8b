package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
)

var ErrConcurrentUpdate = fmt.Errorf("postgres: concurrent update detected: %w", apperr.ErrStateConflict)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// saveVersioned inserts when version is zero and otherwise updates the row only if
// it still carries version. model must already hold version+1.
func saveVersioned(tx *gorm.DB, model any, id string, version int64) error {
	if version == 0 {
		return tx.Create(model).Error
	}
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Select("*").Updates(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

type PropertyRepository struct {
	tx *gorm.DB
}

func (r PropertyRepository) ByID(ctx context.Context, id properties.PropertyID) (*properties.Property, error) {
	var m propertyModel
	if err := r.tx.WithContext(ctx).First(&m, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, properties.ErrPropertyNotFound
		}
		return nil, err
	}
	return m.toAggregate()
}

func (r PropertyRepository) Save(ctx context.Context, p *properties.Property) error {
	m, err := newPropertyModel(p)
	if err != nil {
		return err
	}
	m.Version = p.Version + 1
	if err := saveVersioned(r.tx.WithContext(ctx), &m, m.ID, p.Version); err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == codeUniqueViolation {
			return ErrConcurrentUpdate
		}
		return err
	}
	p.Version = m.Version
	return nil
}

// Lock takes a row lock held until the surrounding transaction ends.
func (r PropertyRepository) Lock(ctx context.Context, id properties.PropertyID) error {
	var m propertyModel
	err := r.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&m, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return properties.ErrPropertyNotFound
	}
	return err
}

func (r PropertyRepository) ListWithFeeds(ctx context.Context, orgID string) ([]*properties.Property, error) {
	q := r.tx.WithContext(ctx).Where("jsonb_array_length(calendar_feeds) > 0")
	if orgID != "" {
		q = q.Where("org_id = ?", orgID)
	}
	var rows []propertyModel
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*properties.Property, 0, len(rows))
	for _, m := range rows {
		p, err := m.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type BookingRepository struct {
	tx *gorm.DB
}

func (r BookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return r.first(r.tx.WithContext(ctx).Where("id = ?", string(id)))
}

func (r BookingRepository) ByExternalID(ctx context.Context, propertyID properties.PropertyID, externalID string) (*booking.Booking, error) {
	if externalID == "" {
		return nil, booking.ErrBookingNotFound
	}
	return r.first(r.tx.WithContext(ctx).Where("property_id = ? AND external_id = ?", string(propertyID), externalID))
}

func (r BookingRepository) first(q *gorm.DB) (*booking.Booking, error) {
	var m bookingModel
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, err
	}
	return m.toAggregate(), nil
}

func (r BookingRepository) ListByProperty(ctx context.Context, propertyID properties.PropertyID, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.find(applyFilter(r.tx.WithContext(ctx).Where("property_id = ?", string(propertyID)), filter))
}

func (r BookingRepository) ListByOrg(ctx context.Context, orgID string, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.find(applyFilter(r.tx.WithContext(ctx).Where("org_id = ?", orgID), filter))
}

func applyFilter(q *gorm.DB, f booking.ListFilter) *gorm.DB {
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Source != "" {
		q = q.Where("source = ?", string(f.Source))
	}
	if f.ImportedOnly {
		q = q.Where("external_id <> ''")
	}
	if f.FeedURL != "" {
		q = q.Where("feed_url = ?", f.FeedURL)
	}
	return q
}

func (r BookingRepository) find(q *gorm.DB) ([]*booking.Booking, error) {
	var rows []bookingModel
	if err := q.Order("check_in, created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*booking.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toAggregate())
	}
	return out, nil
}

func (r BookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	m := newBookingModel(b)
	m.Version = b.Version + 1
	if err := saveVersioned(r.tx.WithContext(ctx), &m, m.ID, b.Version); err != nil {
		return translateBookingError(b, err)
	}
	b.Version = m.Version
	return nil
}

func translateBookingError(b *booking.Booking, err error) error {
	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch {
	case pgErr.Code == codeExclusionViolation:
		return &booking.AvailabilityError{
			PropertyID: string(b.PropertyID),
			CheckIn:    b.Range.CheckIn.Format(time.DateOnly),
			CheckOut:   b.Range.CheckOut.Format(time.DateOnly),
		}
	case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == externalIDIndex:
		return booking.ErrDuplicateExternalID
	case pgErr.Code == codeUniqueViolation:
		return ErrConcurrentUpdate
	}
	return err
}

type PaymentRepository struct {
	tx *gorm.DB
}

func (r PaymentRepository) ByID(ctx context.Context, id payments.PaymentID) (*payments.Payment, error) {
	var m paymentModel
	if err := r.tx.WithContext(ctx).First(&m, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payments.ErrPaymentNotFound
		}
		return nil, err
	}
	return m.toAggregate(), nil
}

func (r PaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]*payments.Payment, error) {
	var rows []paymentModel
	if err := r.tx.WithContext(ctx).Where("booking_id = ?", bookingID).Order("paid_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*payments.Payment, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toAggregate())
	}
	return out, nil
}

func (r PaymentRepository) Save(ctx context.Context, p *payments.Payment) error {
	m := newPaymentModel(p)
	m.Version = p.Version + 1
	if err := saveVersioned(r.tx.WithContext(ctx), &m, m.ID, p.Version); err != nil {
		if pgErr, ok := pgError(err); ok && pgErr.Code == codeUniqueViolation {
			return ErrConcurrentUpdate
		}
		return err
	}
	p.Version = m.Version
	return nil
}

func (r PaymentRepository) Delete(ctx context.Context, id payments.PaymentID) error {
	res := r.tx.WithContext(ctx).Delete(&paymentModel{}, "id = ?", string(id))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return payments.ErrPaymentNotFound
	}
	return nil
}

var (
	_ properties.Repository = PropertyRepository{}
	_ booking.Repository    = BookingRepository{}
	_ payments.Repository   = PaymentRepository{}
)
