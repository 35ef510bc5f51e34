// Package mongostore persists subscriptions in MongoDB, one document per user
// keyed by the user ID.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

// DefaultCollection is used when New is given an empty collection name.
const DefaultCollection = "subscriptions"

// Store implements subscription.Store on a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

var _ subscription.Store = (*Store)(nil)

// New returns a Store over db.collection. Call EnsureIndexes once at startup.
func New(db *mongo.Database, collection string) *Store {
	if db == nil {
		panic("mongostore: database is required")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

// EnsureIndexes creates the customer lookup index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "customer_id", Value: 1}},
		Options: options.Index().SetName("provider_customer"),
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription indexes: %w", err)
	}
	return nil
}

type document struct {
	UserID            string     `bson:"_id"`
	Plan              string     `bson:"plan"`
	Status            string     `bson:"status"`
	TrialEndsAt       *time.Time `bson:"trial_ends_at,omitempty"`
	Provider          string     `bson:"provider"`
	CustomerID        string     `bson:"customer_id"`
	SubscriptionID    string     `bson:"subscription_id"`
	CurrentPeriodEnd  *time.Time `bson:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `bson:"cancel_at_period_end"`
	LastEventAt       *time.Time `bson:"last_event_at,omitempty"`
	Version           int64      `bson:"version"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

func toDocument(sub *subscription.Subscription) document {
	return document{
		UserID:            sub.UserID.String(),
		Plan:              string(sub.Plan),
		Status:            string(sub.Status),
		TrialEndsAt:       sub.TrialEndsAt,
		Provider:          string(sub.Provider),
		CustomerID:        sub.CustomerID,
		SubscriptionID:    sub.SubscriptionID,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		LastEventAt:       sub.LastEventAt,
		Version:           sub.Version,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
}

func (d document) subscription() (*subscription.Subscription, error) {
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid subscription _id %q: %w", d.UserID, err)
	}
	return &subscription.Subscription{
		UserID:            userID,
		Plan:              entitlement.Plan(d.Plan),
		Status:            subscription.Status(d.Status),
		TrialEndsAt:       utcPtr(d.TrialEndsAt),
		Provider:          subscription.ProviderName(d.Provider),
		CustomerID:        d.CustomerID,
		SubscriptionID:    d.SubscriptionID,
		CurrentPeriodEnd:  utcPtr(d.CurrentPeriodEnd),
		CancelAtPeriodEnd: d.CancelAtPeriodEnd,
		LastEventAt:       utcPtr(d.LastEventAt),
		Version:           d.Version,
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: userID.String()}})
}

func (s *Store) FindByCustomerID(ctx context.Context, provider subscription.ProviderName, customerID string) (*subscription.Subscription, error) {
	if customerID == "" {
		return nil, subscription.ErrSubscriptionNotFound
	}
	filter := bson.D{
		{Key: "provider", Value: string(provider)},
		{Key: "customer_id", Value: customerID},
	}
	return s.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
}

func (s *Store) findOne(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOneOptions]) (*subscription.Subscription, error) {
	var doc document
	if err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return doc.subscription()
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	doc := toDocument(sub)
	doc.Version = 1
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return subscription.ErrSubscriptionAlreadyExists
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.Version = 1
	return nil
}

func (s *Store) Update(ctx context.Context, sub *subscription.Subscription) error {
	doc := toDocument(sub)
	set := bson.D{
		{Key: "plan", Value: doc.Plan},
		{Key: "status", Value: doc.Status},
		{Key: "provider", Value: doc.Provider},
		{Key: "customer_id", Value: doc.CustomerID},
		{Key: "subscription_id", Value: doc.SubscriptionID},
		{Key: "cancel_at_period_end", Value: doc.CancelAtPeriodEnd},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}
	unset := bson.D{}
	for key, t := range map[string]*time.Time{
		"trial_ends_at":      doc.TrialEndsAt,
		"current_period_end": doc.CurrentPeriodEnd,
		"last_event_at":      doc.LastEventAt,
	} {
		if t != nil {
			set = append(set, bson.E{Key: key, Value: *t})
		} else {
			unset = append(unset, bson.E{Key: key, Value: ""})
		}
	}

	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	filter := bson.D{
		{Key: "_id", Value: doc.UserID},
		{Key: "version", Value: sub.Version},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: doc.UserID}})
		if err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}
		if n == 0 {
			return subscription.ErrSubscriptionNotFound
		}
		return subscription.ErrVersionConflict
	}
	sub.Version++
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
