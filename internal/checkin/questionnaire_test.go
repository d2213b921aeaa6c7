package checkin

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skintrack/server/internal/models"
)

func TestQuestionnaire(t *testing.T) {
	clock := newFakeClock()
	form := rednessTest().FormStructure

	t.Run("an empty form completes immediately", func(t *testing.T) {
		q := NewQuestionnaire(models.FormStructure{}, clock.Now)

		assert.True(t, q.CanAdvance())
		assert.Equal(t, FlowComplete, q.Next())
		assert.Empty(t, q.Answers())
	})

	t.Run("a required question blocks until answered", func(t *testing.T) {
		q := NewQuestionnaire(form, clock.Now)

		assert.False(t, q.CanAdvance())
		assert.Equal(t, Blocked, q.Next())
		assert.Equal(t, 0, q.Index())

		require.NoError(t, q.Answer("itch", float64(4)))
		assert.True(t, q.CanAdvance())
		assert.Equal(t, Moved, q.Next())
		assert.Equal(t, 1, q.Index())
	})

	t.Run("a blank answer does not satisfy a required question", func(t *testing.T) {
		q := NewQuestionnaire(models.FormStructure{Questions: []models.Question{
			{ID: "notes", Type: models.QuestionText, Question: "Notes", Required: true},
		}}, clock.Now)

		require.NoError(t, q.Answer("notes", "   "))
		assert.False(t, q.CanAdvance())
	})

	t.Run("optional questions can be skipped to the end", func(t *testing.T) {
		q := NewQuestionnaire(form, clock.Now)
		require.NoError(t, q.Answer("itch", float64(2)))

		assert.Equal(t, Moved, q.Next())
		assert.Equal(t, Moved, q.Next())
		assert.Equal(t, FlowComplete, q.Next())
		assert.Equal(t, 2, q.Index())
	})

	t.Run("previous stops at the first question", func(t *testing.T) {
		q := NewQuestionnaire(form, clock.Now)
		require.NoError(t, q.Answer("itch", float64(2)))
		require.Equal(t, Moved, q.Next())

		assert.True(t, q.Previous())
		assert.False(t, q.Previous())
		assert.Equal(t, 0, q.Index())
	})

	t.Run("rejects unknown questions and mismatched types", func(t *testing.T) {
		q := NewQuestionnaire(form, clock.Now)

		assert.ErrorIs(t, q.Answer("missing", "x"), ErrUnknownQuestion)
		assert.ErrorIs(t, q.Answer("itch", "very"), ErrAnswerTypeMismatch)
		assert.ErrorIs(t, q.Answer("flaking", "yes"), ErrAnswerTypeMismatch)
		_, ok := q.Value("itch")
		assert.False(t, ok)
	})

	t.Run("answers keep form order and drop unanswered questions", func(t *testing.T) {
		q := NewQuestionnaire(form, clock.Now)
		require.NoError(t, q.Answer("notes", "dry patches"))
		require.NoError(t, q.Answer("itch", float64(1)))
		require.NoError(t, q.Answer("itch", float64(3)))

		answeredAt := clock.Now().UTC()
		want := []models.Answer{
			{QuestionID: "itch", Answer: float64(3), QuestionType: models.QuestionScale, AnsweredAt: answeredAt},
			{QuestionID: "notes", Answer: "dry patches", QuestionType: models.QuestionText, AnsweredAt: answeredAt},
		}
		if diff := cmp.Diff(want, q.Answers()); diff != "" {
			t.Errorf("answers mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("false and zero are real answers", func(t *testing.T) {
		q := NewQuestionnaire(models.FormStructure{Questions: []models.Question{
			{ID: "itch", Type: models.QuestionScale, Question: "Itch", Required: true},
			{ID: "flaking", Type: models.QuestionBoolean, Question: "Flaking", Required: true},
		}}, clock.Now)

		require.NoError(t, q.Answer("itch", 0))
		assert.True(t, q.CanAdvance())
		require.Equal(t, Moved, q.Next())
		require.NoError(t, q.Answer("flaking", false))
		assert.Equal(t, FlowComplete, q.Next())
		assert.Len(t, q.Answers(), 2)
	})

	t.Run("stamps answers with the injected clock", func(t *testing.T) {
		c := newFakeClock()
		q := NewQuestionnaire(form, c.Now)
		require.NoError(t, q.Answer("itch", float64(2)))
		c.Advance(time.Hour)
		require.NoError(t, q.Answer("notes", "later"))

		answers := q.Answers()
		require.Len(t, answers, 2)
		assert.Equal(t, time.Hour, answers[1].AnsweredAt.Sub(answers[0].AnsweredAt))
	})
}
