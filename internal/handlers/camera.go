package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/skintrack/server/internal/checkin"
)

var errNoFrame = errors.New("no frame in request")

// uploadedFrame adapts a frame posted by the device to checkin.Camera.
// The device owns the real camera; the server only sees what it sent.
type uploadedFrame struct {
	denied bool
	img    checkin.ImageHandle
	err    error
}

func (f uploadedFrame) RequestPermission(ctx context.Context) (bool, error) {
	return !f.denied, nil
}

func (f uploadedFrame) CapturePhoto(ctx context.Context) (checkin.ImageHandle, error) {
	if f.err != nil {
		return checkin.ImageHandle{}, f.err
	}
	return f.img, nil
}

// frameFromRequest reads the multipart "file" field. A "permission" field
// of "denied" reports that the user refused camera access.
func frameFromRequest(r *http.Request, maxBytes int64) uploadedFrame {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return uploadedFrame{err: fmt.Errorf("parse multipart form: %w", err)}
	}
	if r.FormValue("permission") == "denied" {
		return uploadedFrame{denied: true}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadedFrame{err: errNoFrame}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return uploadedFrame{err: fmt.Errorf("read frame: %w", err)}
	}
	if int64(len(data)) > maxBytes {
		return uploadedFrame{err: fmt.Errorf("frame exceeds %d bytes", maxBytes)}
	}

	return uploadedFrame{img: checkin.ImageHandle{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}}
}
