package checkin

import (
	"fmt"
	"time"

	"github.com/skintrack/server/internal/models"
)

// Advance is the outcome of Questionnaire.Next
type Advance int

const (
	// Blocked means the current question is required and unanswered
	Blocked Advance = iota
	// Moved means the cursor moved to the next question
	Moved
	// FlowComplete means Next was called on the last question
	FlowComplete
)

// Questionnaire tracks the cursor and answers for one test's form. It has
// no I/O and is guarded by the owning session.
type Questionnaire struct {
	questions  []models.Question
	cursor     int
	answers    map[string]any
	answeredAt map[string]time.Time
	now        func() time.Time
}

// NewQuestionnaire starts at the first question of form
func NewQuestionnaire(form models.FormStructure, now func() time.Time) *Questionnaire {
	if now == nil {
		now = time.Now
	}
	return &Questionnaire{
		questions:  form.Questions,
		answers:    make(map[string]any),
		answeredAt: make(map[string]time.Time),
		now:        now,
	}
}

// Len returns the number of questions
func (q *Questionnaire) Len() int {
	return len(q.questions)
}

// Index returns the cursor position
func (q *Questionnaire) Index() int {
	return q.cursor
}

// Current returns the question under the cursor
func (q *Questionnaire) Current() (models.Question, bool) {
	if q.cursor >= len(q.questions) {
		return models.Question{}, false
	}
	return q.questions[q.cursor], true
}

// Answer records or overwrites the value for a question. The value must
// have the kind the question declares.
func (q *Questionnaire) Answer(questionID string, value any) error {
	question, ok := models.FormStructure{Questions: q.questions}.Find(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if value != nil && !models.MatchesQuestionType(question.Type, value) {
		return fmt.Errorf("%w: %s expects %s", ErrAnswerTypeMismatch, questionID, question.Type)
	}

	q.answers[questionID] = value
	q.answeredAt[questionID] = q.now().UTC()
	return nil
}

// Value returns the recorded value for a question
func (q *Questionnaire) Value(questionID string) (any, bool) {
	v, ok := q.answers[questionID]
	return v, ok
}

// CanAdvance gates Next on the current question only
func (q *Questionnaire) CanAdvance() bool {
	current, ok := q.Current()
	if !ok || !current.Required {
		return true
	}
	return !models.IsEmptyAnswer(q.answers[current.ID])
}

// Next moves the cursor forward. On the last question, or on an empty
// form, it reports FlowComplete and the cursor stays put.
func (q *Questionnaire) Next() Advance {
	if !q.CanAdvance() {
		return Blocked
	}
	if q.cursor >= len(q.questions)-1 {
		return FlowComplete
	}
	q.cursor++
	return Moved
}

// Previous moves the cursor back. It reports false on the first question.
func (q *Questionnaire) Previous() bool {
	if q.cursor == 0 {
		return false
	}
	q.cursor--
	return true
}

// Answers converts the recorded values to the persisted shape in form
// order. Questions without an answer, or with an empty one, are dropped.
func (q *Questionnaire) Answers() []models.Answer {
	out := make([]models.Answer, 0, len(q.answers))
	for _, question := range q.questions {
		v, ok := q.answers[question.ID]
		if !ok || models.IsEmptyAnswer(v) {
			continue
		}
		out = append(out, models.Answer{
			QuestionID:   question.ID,
			Answer:       v,
			QuestionType: question.Type,
			AnsweredAt:   q.answeredAt[question.ID],
		})
	}
	return out
}

// Values returns a copy of the raw recorded values
func (q *Questionnaire) Values() map[string]any {
	out := make(map[string]any, len(q.answers))
	for k, v := range q.answers {
		out[k] = v
	}
	return out
}
