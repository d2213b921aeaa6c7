package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CheckIn is one completed instance of the tracking ritual
type CheckIn struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	TestID        *string   `json:"testId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Completed     bool      `json:"completed"`
	LeftPhotoID   *string   `json:"leftPhotoId,omitempty"`
	CenterPhotoID *string   `json:"centerPhotoId,omitempty"`
	RightPhotoID  *string   `json:"rightPhotoId,omitempty"`
}

// NewCheckIn creates a CheckIn. A check-in is only created once its photos
// are attached, so it is always completed.
func NewCheckIn(ownerID string, testID *string, photos PhotoSet) (*CheckIn, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}

	return &CheckIn{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		TestID:        testID,
		CreatedAt:     time.Now().UTC(),
		Completed:     true,
		LeftPhotoID:   optional(photos.Left),
		CenterPhotoID: optional(photos.Center),
		RightPhotoID:  optional(photos.Right),
	}, nil
}

// Photos returns the check-in's photo ids as a PhotoSet
func (c *CheckIn) Photos() PhotoSet {
	return PhotoSet{
		Left:   deref(c.LeftPhotoID),
		Center: deref(c.CenterPhotoID),
		Right:  deref(c.RightPhotoID),
	}
}

// Answer is one persisted questionnaire answer
type Answer struct {
	QuestionID   string       `json:"questionId"`
	Answer       any          `json:"answer"`
	QuestionType QuestionType `json:"questionType"`
	AnsweredAt   time.Time    `json:"answeredAt"`
}

// TestCheckin records one test's questionnaire answered during a check-in
type TestCheckin struct {
	ID        string    `json:"id"`
	CheckInID *string   `json:"checkInId,omitempty"`
	TestID    string    `json:"testId"`
	OwnerID   string    `json:"ownerId"`
	Answers   []Answer  `json:"answers"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Summary   *string   `json:"summary,omitempty"`
}

// NewTestCheckin creates a TestCheckin for the given test with its
// completed flag derived from the test's required questions.
func NewTestCheckin(ownerID string, test *Test, checkInID string, answers []Answer) (*TestCheckin, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}
	if test == nil || strings.TrimSpace(test.ID) == "" {
		return nil, ErrEmptyTestID
	}
	if answers == nil {
		answers = []Answer{}
	}

	now := time.Now().UTC()
	return &TestCheckin{
		ID:        uuid.New().String(),
		CheckInID: optional(checkInID),
		TestID:    test.ID,
		OwnerID:   ownerID,
		Answers:   answers,
		Completed: ComputeCompleted(test.FormStructure, answers),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ComputeCompleted reports whether every required question of the form has
// an answer. A form without required questions is always complete.
func ComputeCompleted(form FormStructure, answers []Answer) bool {
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		if !IsEmptyAnswer(a.Answer) {
			answered[a.QuestionID] = true
		}
	}
	for _, id := range form.RequiredIDs() {
		if !answered[id] {
			return false
		}
	}
	return true
}

// IsEmptyAnswer reports whether a value counts as "not answered".
// false and 0 are real answers.
func IsEmptyAnswer(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}

// MatchesQuestionType reports whether a value has the kind the question
// type declares. Unknown types accept any value.
func MatchesQuestionType(t QuestionType, v any) bool {
	switch t {
	case QuestionText, QuestionSelect:
		_, ok := v.(string)
		return ok
	case QuestionNumber, QuestionScale:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case QuestionBoolean:
		_, ok := v.(bool)
		return ok
	case QuestionMultiSelect:
		switch vals := v.(type) {
		case []string:
			return true
		case []any:
			for _, item := range vals {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
