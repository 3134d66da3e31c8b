package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
)

var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w", apperr.ErrStateConflict)

// saveVersioned upserts doc guarded by the previous version. A zero version
// inserts; a mismatch surfaces as a duplicate _id on upsert.
func saveVersioned(ctx context.Context, col *mongo.Collection, id string, version int64, doc any) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), externalIDIndex) {
				return booking.ErrDuplicateExternalID
			}
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection(propertiesCollection)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id properties.PropertyID) (*properties.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, properties.ErrPropertyNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *properties.Property) error {
	doc := newPropertyDocument(p)
	doc.Version = p.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, p.Version, doc); err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

// Lock bumps a counter on the property document so concurrent transactions
// touching the same property conflict and one of them aborts.
func (r *PropertyRepository) Lock(ctx context.Context, id properties.PropertyID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$inc": bson.M{"lock_seq": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return properties.ErrPropertyNotFound
	}
	return nil
}

func (r *PropertyRepository) ListWithFeeds(ctx context.Context, orgID string) ([]*properties.Property, error) {
	filter := bson.M{"calendar_feeds.0": bson.M{"$exists": true}}
	if orgID != "" {
		filter["org_id"] = orgID
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []propertyDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*properties.Property, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByExternalID(ctx context.Context, propertyID properties.PropertyID, externalID string) (*booking.Booking, error) {
	if externalID == "" {
		return nil, booking.ErrBookingNotFound
	}
	return r.findOne(ctx, bson.M{"property_id": string(propertyID), "external_id": externalID})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*booking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID properties.PropertyID, filter booking.ListFilter) ([]*booking.Booking, error) {
	q := listFilter(filter)
	q["property_id"] = string(propertyID)
	return r.find(ctx, q)
}

func (r *BookingRepository) ListByOrg(ctx context.Context, orgID string, filter booking.ListFilter) ([]*booking.Booking, error) {
	q := listFilter(filter)
	q["org_id"] = orgID
	return r.find(ctx, q)
}

func listFilter(f booking.ListFilter) bson.M {
	q := bson.M{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q["status"] = bson.M{"$in": statuses}
	}
	if f.Source != "" {
		q["source"] = string(f.Source)
	}
	if f.ImportedOnly {
		q["external_id"] = bson.M{"$gt": ""}
	}
	if f.FeedURL != "" {
		q["feed_url"] = f.FeedURL
	}
	return q
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*booking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*booking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, b.Version, doc); err != nil {
		return err
	}
	b.Version = doc.Version
	return nil
}

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(paymentsCollection)}
}

func (r *PaymentRepository) ByID(ctx context.Context, id payments.PaymentID) (*payments.Payment, error) {
	var doc paymentDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, payments.ErrPaymentNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]*payments.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "paid_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []paymentDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*payments.Payment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *payments.Payment) error {
	doc := newPaymentDocument(p)
	doc.Version = p.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, p.Version, doc); err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

func (r *PaymentRepository) Delete(ctx context.Context, id payments.PaymentID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return payments.ErrPaymentNotFound
	}
	return nil
}

var (
	_ properties.Repository = (*PropertyRepository)(nil)
	_ booking.Repository    = (*BookingRepository)(nil)
	_ payments.Repository   = (*PaymentRepository)(nil)
)
