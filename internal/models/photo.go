package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Angle identifies which of the three reference shots a photo is
type Angle string

const (
	AngleLeft   Angle = "left"
	AngleCenter Angle = "center"
	AngleRight  Angle = "right"
)

// CaptureOrder is the fixed order in which a session collects its photos
var CaptureOrder = []Angle{AngleLeft, AngleCenter, AngleRight}

// IsValidAngle checks if an angle value is valid
func IsValidAngle(a string) bool {
	switch Angle(a) {
	case AngleLeft, AngleCenter, AngleRight:
		return true
	}
	return false
}

// Photo is one confirmed reference shot. Photos are immutable once saved;
// the three shots of one capture session share a SessionID.
type Photo struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	StorageRef string    `json:"storageRef"`
	Angle      Angle     `json:"angle"`
	SessionID  string    `json:"sessionId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewPhoto creates a new Photo with validation
func NewPhoto(ownerID, storageRef string, angle Angle, sessionID string) (*Photo, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}
	if strings.TrimSpace(storageRef) == "" {
		return nil, ErrEmptyStorageRef
	}
	if !IsValidAngle(string(angle)) {
		return nil, ErrInvalidAngle
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	return &Photo{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		StorageRef: storageRef,
		Angle:      angle,
		SessionID:  sessionID,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// PhotoSet holds the confirmed photo id for each angle of a session
type PhotoSet struct {
	Left   string `json:"left,omitempty"`
	Center string `json:"center,omitempty"`
	Right  string `json:"right,omitempty"`
}

// Get returns the photo id recorded for an angle
func (s PhotoSet) Get(a Angle) string {
	switch a {
	case AngleLeft:
		return s.Left
	case AngleCenter:
		return s.Center
	case AngleRight:
		return s.Right
	}
	return ""
}

// With returns a copy of the set with the angle's id replaced
func (s PhotoSet) With(a Angle, id string) PhotoSet {
	switch a {
	case AngleLeft:
		s.Left = id
	case AngleCenter:
		s.Center = id
	case AngleRight:
		s.Right = id
	}
	return s
}

// Complete reports whether every angle has a confirmed photo
func (s PhotoSet) Complete() bool {
	return s.Left != "" && s.Center != "" && s.Right != ""
}

// IDs returns the non-empty photo ids in capture order
func (s PhotoSet) IDs() []string {
	ids := make([]string, 0, 3)
	for _, a := range CaptureOrder {
		if id := s.Get(a); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
