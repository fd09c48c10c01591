package feedback_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speaklab/backend/modules/feedback"
)

type fakeScorer struct {
	calls atomic.Int32
	score feedback.Score
	err   error
}

func (s *fakeScorer) Score(context.Context, string, string, string) (feedback.Score, error) {
	s.calls.Add(1)
	if s.err != nil {
		return feedback.Score{}, s.err
	}
	return s.score, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveClassFeedback(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{score: feedback.Score{
		Overall:    82,
		Fluency:    80,
		Vocabulary: 78,
		Grammar:    88,
		Strengths:  []string{"clear pronunciation"},
	}}
	svc := feedback.NewService(feedback.NewMemoryStore(), scorer, discardLogger())

	fb, err := svc.SaveClassFeedback(context.Background(), "user-1", "interview-1", "hello, my name is...")
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, "user-1", fb.UserID)
	assert.Equal(t, "interview-1", fb.InterviewID)
	assert.Equal(t, 82, fb.Score.Overall)
	assert.False(t, fb.CreatedAt.IsZero())
}

func TestSaveClassFeedback_RepeatedSubmissionScoresOnce(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{score: feedback.Score{Overall: 70}}
	svc := feedback.NewService(feedback.NewMemoryStore(), scorer, discardLogger())

	first, err := svc.SaveClassFeedback(context.Background(), "user-1", "interview-1", "transcript")
	require.NoError(t, err)
	second, err := svc.SaveClassFeedback(context.Background(), "user-1", "interview-1", "transcript")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), scorer.calls.Load(), "scoring an interview twice wastes money")
}

func TestSaveClassFeedback_ScorerFailure(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{err: errors.New("model overloaded")}
	store := feedback.NewMemoryStore()
	svc := feedback.NewService(store, scorer, discardLogger())

	_, err := svc.SaveClassFeedback(context.Background(), "user-1", "interview-1", "transcript")
	assert.ErrorIs(t, err, feedback.ErrScorer)

	// A failed scoring attempt must not leave a record behind.
	records, err := store.ListByUser(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListForUser(t *testing.T) {
	t.Parallel()

	store := feedback.NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range 30 {
		require.NoError(t, store.Create(context.Background(), &feedback.Feedback{
			ID:          fmt.Sprintf("fb-%d", i),
			UserID:      "user-1",
			InterviewID: fmt.Sprintf("interview-%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.Create(context.Background(), &feedback.Feedback{
		ID:     "fb-other",
		UserID: "user-2",
	}))
	svc := feedback.NewService(store, &fakeScorer{}, discardLogger())

	t.Run("default limit", func(t *testing.T) {
		t.Parallel()
		records, err := svc.ListForUser(context.Background(), "user-1", 0)
		require.NoError(t, err)
		assert.Len(t, records, 20)
		// Newest first.
		assert.Equal(t, "fb-29", records[0].ID)
	})

	t.Run("explicit limit", func(t *testing.T) {
		t.Parallel()
		records, err := svc.ListForUser(context.Background(), "user-1", 5)
		require.NoError(t, err)
		assert.Len(t, records, 5)
	})

	t.Run("other users are invisible", func(t *testing.T) {
		t.Parallel()
		records, err := svc.ListForUser(context.Background(), "user-2", 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "fb-other", records[0].ID)
	})
}
