package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionType is the declared answer kind of a questionnaire item
type QuestionType string

const (
	QuestionText        QuestionType = "text"
	QuestionNumber      QuestionType = "number"
	QuestionScale       QuestionType = "scale"
	QuestionBoolean     QuestionType = "boolean"
	QuestionSelect      QuestionType = "select"
	QuestionMultiSelect QuestionType = "multiselect"
)

// DefaultTestDurationDays applies when a test has neither a duration nor an end date
const DefaultTestDurationDays = 14

// Question is one item of a test's form
type Question struct {
	ID       string       `json:"id" yaml:"id"`
	Type     QuestionType `json:"type" yaml:"type"`
	Question string       `json:"question" yaml:"question"`
	Required bool         `json:"required" yaml:"required"`
	Options  []string     `json:"options,omitempty" yaml:"options,omitempty"`
}

// FormStructure is the ordered question list of a test
type FormStructure struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Find returns the question with the given id
func (f FormStructure) Find(id string) (Question, bool) {
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// RequiredIDs returns the ids of all required questions
func (f FormStructure) RequiredIDs() []string {
	var ids []string
	for _, q := range f.Questions {
		if q.Required {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// Validate checks question ids are present and unique
func (f FormStructure) Validate() error {
	seen := make(map[string]bool, len(f.Questions))
	for _, q := range f.Questions {
		if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Question) == "" {
			return ErrEmptyQuestion
		}
		if seen[q.ID] {
			return ErrDuplicateQuestion
		}
		seen[q.ID] = true
	}
	return nil
}

// Test is a named, time-bounded questionnaire a user follows
type Test struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"ownerId"`
	Name          string        `json:"name"`
	Description   *string       `json:"description,omitempty"`
	FormStructure FormStructure `json:"formStructure"`
	StartDate     time.Time     `json:"startDate"`
	EndDate       *time.Time    `json:"endDate,omitempty"`
	Duration      *int          `json:"duration,omitempty"` // days
	IsActive      bool          `json:"isActive"`
}

// NewTest creates a new active Test starting at startDate
func NewTest(ownerID, name string, description *string, form FormStructure, startDate time.Time, duration *int, endDate *time.Time) (*Test, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyTestName
	}
	if duration != nil && *duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if endDate != nil && !endDate.After(startDate) {
		return nil, ErrInvalidEndDate
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}

	return &Test{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Name:          strings.TrimSpace(name),
		Description:   description,
		FormStructure: form,
		StartDate:     startDate.UTC(),
		EndDate:       endDate,
		Duration:      duration,
		IsActive:      true,
	}, nil
}
