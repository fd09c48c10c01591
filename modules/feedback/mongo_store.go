package feedback

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const feedbackCollection = "feedback"

type mongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a Store backed by the given database.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{coll: db.Collection(feedbackCollection)}
}

// EnsureIndexes creates the user listing index. Idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(feedbackCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) Create(ctx context.Context, fb *Feedback) error {
	if _, err := s.coll.InsertOne(ctx, fb); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (s *mongoStore) GetByInterview(ctx context.Context, userID, interviewID string) (*Feedback, error) {
	var fb Feedback
	err := s.coll.FindOne(ctx, bson.M{"userId": userID, "interviewId": interviewID}).Decode(&fb)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &fb, nil
}

func (s *mongoStore) ListByUser(ctx context.Context, userID string, limit int64) ([]Feedback, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	defer cursor.Close(ctx)

	var out []Feedback
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return out, nil
}
