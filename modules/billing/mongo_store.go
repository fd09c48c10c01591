package billing

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
)

type mongoStore struct {
	users *mongo.Collection
	subs  *mongo.Collection
}

// NewMongoStore returns a Store backed by the given database.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{
		users: db.Collection(usersCollection),
		subs:  db.Collection(subscriptionsCollection),
	}
}

// EnsureIndexes creates the indexes the webhook join and the authoritative
// subscription query depend on. Idempotent, called once at startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(subscriptionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "stripeSubscriptionId", Value: 1}}},
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &u, nil
}

func (s *mongoStore) SetTrialState(ctx context.Context, userID string, active, used bool) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"trialActive": active,
		"trialUsed":   used,
	}})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) GrantTrial(ctx context.Context, userID string, grant TrialGrant) (bool, error) {
	// The filter is the entire concurrency story: only a user that has never
	// been granted a trial matches, so of N racing grants exactly one update
	// finds a document to modify.
	res, err := s.users.UpdateOne(ctx, bson.M{
		"_id":         userID,
		"trialUsed":   bson.M{"$ne": true},
		"trialEndsAt": bson.M{"$exists": false},
	}, bson.M{"$set": bson.M{
		"trialEndsAt":    grant.EndsAt,
		"trialStartedAt": grant.StartedAt,
		"trialActive":    true,
		"trialPlan":      grant.Plan,
	}})
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	return res.MatchedCount == 1, nil
}

func (s *mongoStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$set": bson.M{"stripeCustomerId": customerID}})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) SetSubscriptionSummary(ctx context.Context, userID string, sum *SubscriptionSummary) error {
	var update bson.M
	if sum == nil {
		update = bson.M{"$unset": bson.M{"subscription": ""}}
	} else {
		update = bson.M{"$set": bson.M{"subscription": sum}}
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if _, err := s.subs.InsertOne(ctx, sub); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) GetSubscriptionByStripeID(ctx context.Context, stripeSubID string) (*Subscription, error) {
	var sub Subscription
	err := s.subs.FindOne(ctx, bson.M{"stripeSubscriptionId": stripeSubID}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &sub, nil
}

func (s *mongoStore) FindCurrentSubscription(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	err := s.subs.FindOne(ctx, bson.M{
		"userId": userID,
		"status": bson.M{"$in": []SubscriptionStatus{StatusActive, StatusTrialing}},
	}, options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &sub, nil
}

func (s *mongoStore) PatchSubscription(ctx context.Context, id string, patch SubscriptionPatch) error {
	fields := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Status != nil {
		fields["status"] = *patch.Status
	}
	if patch.CurrentPeriodStart != nil {
		fields["currentPeriodStart"] = *patch.CurrentPeriodStart
	}
	if patch.CurrentPeriodEnd != nil {
		fields["currentPeriodEnd"] = *patch.CurrentPeriodEnd
	}
	if patch.CancelAtPeriodEnd != nil {
		fields["cancelAtPeriodEnd"] = *patch.CancelAtPeriodEnd
	}
	_, err := s.subs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}
