package models

// ModelError is returned when a record fails validation
type ModelError struct {
	Message string
}

func (e ModelError) Error() string {
	return e.Message
}

var (
	ErrEmptyOwner           = ModelError{"owner id cannot be empty"}
	ErrEmptyStorageRef      = ModelError{"storage reference cannot be empty"}
	ErrInvalidAngle         = ModelError{"angle must be left, center or right"}
	ErrEmptySessionID       = ModelError{"session id cannot be empty"}
	ErrEmptyTestID          = ModelError{"test id cannot be empty"}
	ErrEmptyTestName        = ModelError{"test name cannot be empty"}
	ErrInvalidDuration      = ModelError{"duration must be positive"}
	ErrInvalidEndDate       = ModelError{"end date must be after start date"}
	ErrDuplicateQuestion    = ModelError{"question ids must be unique"}
	ErrEmptyQuestion        = ModelError{"question id and text cannot be empty"}
	ErrPhotoNotFound        = ModelError{"photo not found"}
	ErrTestNotFound         = ModelError{"test not found"}
	ErrTestCheckinNotFound  = ModelError{"test check-in not found"}
	ErrPhotoSessionMismatch = ModelError{"check-in photos must come from one capture session"}
	ErrInvalidExtension     = ModelError{"file extension not allowed"}
	ErrFileTooLarge         = ModelError{"file size exceeds maximum allowed"}
	ErrEmptyImage           = ModelError{"image data cannot be empty"}
	ErrPathTraversal        = ModelError{"invalid path - path traversal detected"}
)
