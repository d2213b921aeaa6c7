package checkin

import (
	"context"
	"fmt"
	"sync"

	"github.com/skintrack/server/internal/models"
)

// CaptureController walks the three reference angles in fixed order. Each
// angle goes capture → review → retake or confirm, and only a successful
// confirm yields a photo id and moves the cursor on.
type CaptureController struct {
	ownerID   string
	sessionID string
	uploader  ImageUploader
	photos    PhotoRecorder

	mu      sync.Mutex
	cursor  int
	held    *ImageHandle
	set     models.PhotoSet
	pending bool
}

// NewCaptureController creates a controller positioned at the first angle
func NewCaptureController(ownerID, sessionID string, uploader ImageUploader, photos PhotoRecorder) *CaptureController {
	return &CaptureController{
		ownerID:   ownerID,
		sessionID: sessionID,
		uploader:  uploader,
		photos:    photos,
	}
}

// Angle returns the angle being captured, or "" once all three are confirmed
func (c *CaptureController) Angle() models.Angle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.angle()
}

func (c *CaptureController) angle() models.Angle {
	if c.cursor >= len(models.CaptureOrder) {
		return ""
	}
	return models.CaptureOrder[c.cursor]
}

// Reviewing reports whether a captured frame is waiting for retake or confirm
func (c *CaptureController) Reviewing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held != nil
}

// Photos returns the photo ids confirmed so far
func (c *CaptureController) Photos() models.PhotoSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// Done reports whether every angle has a confirmed photo
func (c *CaptureController) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set.Complete()
}

// Capture asks for camera permission and takes a frame. On failure nothing
// is held and the angle stays capturable.
func (c *CaptureController) Capture(ctx context.Context, cam Camera) error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrOperationInFlight
	}
	if c.held != nil || c.angle() == "" {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.pending = true
	c.mu.Unlock()

	img, err := capture(ctx, cam)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	if err != nil {
		return err
	}
	c.held = &img
	return nil
}

func capture(ctx context.Context, cam Camera) (ImageHandle, error) {
	granted, err := cam.RequestPermission(ctx)
	if err != nil {
		return ImageHandle{}, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	if !granted {
		return ImageHandle{}, ErrPermissionDenied
	}

	img, err := cam.CapturePhoto(ctx)
	if err != nil {
		return ImageHandle{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if len(img.Data) == 0 {
		return ImageHandle{}, fmt.Errorf("%w: %w", ErrCaptureFailed, models.ErrEmptyImage)
	}
	return img, nil
}

// Retake drops the held frame
func (c *CaptureController) Retake() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending {
		return ErrOperationInFlight
	}
	if c.held == nil {
		return ErrInvalidTransition
	}
	c.held = nil
	return nil
}

// Confirm uploads the held frame and saves its metadata under the shared
// session id. On failure the frame stays held so Confirm can be retried
// without capturing again.
func (c *CaptureController) Confirm(ctx context.Context) (models.Angle, string, error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return "", "", ErrOperationInFlight
	}
	if c.held == nil {
		c.mu.Unlock()
		return "", "", ErrInvalidTransition
	}
	img := *c.held
	angle := c.angle()
	c.pending = true
	c.mu.Unlock()

	id, err := c.save(ctx, angle, img)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	if err != nil {
		return angle, "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	c.set = c.set.With(angle, id)
	c.held = nil
	c.cursor++
	return angle, id, nil
}

func (c *CaptureController) save(ctx context.Context, angle models.Angle, img ImageHandle) (string, error) {
	ref, err := c.uploader.UploadImage(ctx, img)
	if err != nil {
		return "", err
	}
	return c.photos.CreatePhoto(ctx, c.ownerID, ref, angle, c.sessionID)
}
