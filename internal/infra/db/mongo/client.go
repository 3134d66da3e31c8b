package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	propertiesCollection  = "properties"
	bookingsCollection    = "bookings"
	paymentsCollection    = "payments"
	outboxCollection      = "app_outbox"
	idempotencyCollection = "app_idempotency"

	externalIDIndex = "uniq_property_external_id"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		propertiesCollection: {
			{Keys: bson.D{{Key: "org_id", Value: 1}}},
		},
		bookingsCollection: {
			{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "check_in", Value: 1}}},
			{Keys: bson.D{{Key: "org_id", Value: 1}, {Key: "check_in", Value: 1}}},
			{
				Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "external_id", Value: 1}},
				Options: options.Index().
					SetName(externalIDIndex).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"external_id": bson.M{"$gt": ""}}),
			},
		},
		paymentsCollection: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "paid_at", Value: 1}}},
		},
		outboxCollection: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
