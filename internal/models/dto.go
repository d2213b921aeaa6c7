package models

import "time"

// PhotoListResponse is returned when listing photos
type PhotoListResponse struct {
	Photos     []*Photo `json:"photos"`
	TotalCount int      `json:"totalCount"`
	Skip       int      `json:"skip"`
	Take       int      `json:"take"`
}

// CheckInListResponse is returned when listing recent check-ins
type CheckInListResponse struct {
	CheckIns []*CheckIn `json:"checkIns"`
}

// DashboardResponse carries the derived metrics for the home screen
type DashboardResponse struct {
	Streak         int        `json:"streak"`
	ActiveTest     *Test      `json:"activeTest,omitempty"`
	DaysRemaining  *int       `json:"daysRemaining,omitempty"`
	PhotoCount     int        `json:"photoCount"`
	RecentCheckIns []*CheckIn `json:"recentCheckIns"`
	CheckedInToday bool       `json:"checkedInToday"`
}

// StartTestRequest starts following a catalog template
type StartTestRequest struct {
	TemplateID string `json:"templateId"`
}

// AnswerRequest is the request body for answering a question
type AnswerRequest struct {
	Value any `json:"value"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LiveSessions int       `json:"liveSessions"`
	Connections  int       `json:"connections"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
