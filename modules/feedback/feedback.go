// Package feedback stores per-class feedback produced by the transcript
// scorer. The scorer itself is an external collaborator behind the Scorer
// interface; this module owns persistence and retrieval only.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/speaklab/backend/pkg/logger"
)

var (
	ErrNotFound = errors.New("feedback: record not found")
	ErrStorage  = errors.New("feedback: storage operation failed")
	ErrScorer   = errors.New("feedback: transcript scoring failed")
)

// Score is the structured result returned by the transcript scorer.
type Score struct {
	Overall       int      `bson:"overall" json:"overall"` // 0-100
	Fluency       int      `bson:"fluency" json:"fluency"`
	Vocabulary    int      `bson:"vocabulary" json:"vocabulary"`
	Grammar       int      `bson:"grammar" json:"grammar"`
	Strengths     []string `bson:"strengths" json:"strengths"`
	Improvements  []string `bson:"improvements" json:"improvements"`
	FinalComments string   `bson:"finalComments" json:"finalComments"`
}

// Feedback is one scored class transcript.
type Feedback struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"userId" json:"userId"`
	InterviewID string    `bson:"interviewId" json:"interviewId"`
	Transcript  string    `bson:"transcript" json:"-"`
	Score       Score     `bson:"score" json:"score"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// Scorer turns a raw class transcript into a structured score. Implemented
// outside this service by the voice-AI pipeline.
type Scorer interface {
	Score(ctx context.Context, userID, interviewID, transcript string) (Score, error)
}

// Store persists feedback records.
type Store interface {
	Create(ctx context.Context, fb *Feedback) error
	GetByInterview(ctx context.Context, userID, interviewID string) (*Feedback, error)
	ListByUser(ctx context.Context, userID string, limit int64) ([]Feedback, error)
}

// Service scores transcripts and persists the results.
type Service struct {
	store  Store
	scorer Scorer
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates the feedback service. Panics on nil dependencies to
// fail fast during initialization.
func NewService(store Store, scorer Scorer, log *slog.Logger) *Service {
	if store == nil {
		panic("feedback: Store is required")
	}
	if scorer == nil {
		panic("feedback: Scorer is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		scorer: scorer,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SaveClassFeedback scores the transcript and stores the result. A repeated
// submission for the same interview returns the already stored record
// instead of scoring twice.
func (s *Service) SaveClassFeedback(ctx context.Context, userID, interviewID, transcript string) (*Feedback, error) {
	if existing, err := s.store.GetByInterview(ctx, userID, interviewID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	score, err := s.scorer.Score(ctx, userID, interviewID, transcript)
	if err != nil {
		return nil, errors.Join(ErrScorer, err)
	}

	fb := &Feedback{
		ID:          uuid.NewString(),
		UserID:      userID,
		InterviewID: interviewID,
		Transcript:  transcript,
		Score:       score,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, fb); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "class feedback saved", logger.UserID(userID))
	return fb, nil
}

// ListForUser returns the user's most recent feedback records.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int64) ([]Feedback, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListByUser(ctx, userID, limit)
}
