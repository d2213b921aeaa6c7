package models

import (
	"strings"
	"time"
)

// UserProfile holds the coarse onboarding attributes used as summary context
type UserProfile struct {
	OwnerID   string    `json:"ownerId"`
	SkinType  string    `json:"skinType,omitempty"`
	AgeRange  string    `json:"ageRange,omitempty"`
	Concerns  []string  `json:"concerns,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileRequest is the request body for updating a profile
type ProfileRequest struct {
	SkinType string   `json:"skinType"`
	AgeRange string   `json:"ageRange"`
	Concerns []string `json:"concerns"`
}

// NewUserProfile creates a profile from a request
func NewUserProfile(ownerID string, req ProfileRequest) (*UserProfile, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}

	concerns := make([]string, 0, len(req.Concerns))
	for _, c := range req.Concerns {
		if c = strings.TrimSpace(c); c != "" {
			concerns = append(concerns, c)
		}
	}

	return &UserProfile{
		OwnerID:   ownerID,
		SkinType:  strings.TrimSpace(req.SkinType),
		AgeRange:  strings.TrimSpace(req.AgeRange),
		Concerns:  concerns,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// QAPair is one answered question as shown to the summary generator
type QAPair struct {
	Question     string       `json:"question"`
	Answer       any          `json:"answer"`
	QuestionType QuestionType `json:"questionType"`
}

// SummaryContext is everything the text generator sees for one check-in
type SummaryContext struct {
	TestName        string      `json:"testName"`
	TestDescription string      `json:"testDescription,omitempty"`
	Profile         UserProfile `json:"profile"`
	Answers         []QAPair    `json:"answers"`
	CheckInDate     string      `json:"checkInDate"`
}

// NewSummaryContext pairs each answer with its question text. Answers whose
// question is no longer in the form keep the question id as text.
func NewSummaryContext(test *Test, profile UserProfile, answers []Answer, checkInDate time.Time) SummaryContext {
	ctx := SummaryContext{
		Profile:     profile,
		Answers:     make([]QAPair, 0, len(answers)),
		CheckInDate: checkInDate.Format("2006-01-02"),
	}
	if test != nil {
		ctx.TestName = test.Name
		if test.Description != nil {
			ctx.TestDescription = *test.Description
		}
	}

	for _, a := range answers {
		text := a.QuestionID
		if test != nil {
			if q, ok := test.FormStructure.Find(a.QuestionID); ok {
				text = q.Question
			}
		}
		ctx.Answers = append(ctx.Answers, QAPair{
			Question:     text,
			Answer:       a.Answer,
			QuestionType: a.QuestionType,
		})
	}
	return ctx
}
