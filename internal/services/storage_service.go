package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/models"
)

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// PhotoStorageService stores check-in frames on disk under Year/Month,
// named by the SHA-256 of their content
type PhotoStorageService struct {
	basePath          string
	allowedExtensions map[string]bool
	maxFileSizeBytes  int64
	now               func() time.Time
}

// NewPhotoStorageService creates a new PhotoStorageService
func NewPhotoStorageService(basePath string, allowedExtensions []string, maxFileSizeMB int64) (*PhotoStorageService, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	extSet := make(map[string]bool)
	if len(allowedExtensions) == 0 {
		for _, ext := range contentTypeExtensions {
			extSet[ext] = true
		}
		extSet[".jpeg"] = true
	} else {
		for _, ext := range allowedExtensions {
			extSet[strings.ToLower(ext)] = true
		}
	}

	return &PhotoStorageService{
		basePath:          absPath,
		allowedExtensions: extSet,
		maxFileSizeBytes:  maxFileSizeMB * 1024 * 1024,
		now:               time.Now,
	}, nil
}

// UploadImage writes a confirmed frame and returns its storage reference.
// Uploading identical bytes again in the same month returns the existing
// reference, so a retried confirm does not duplicate files.
func (s *PhotoStorageService) UploadImage(ctx context.Context, img checkin.ImageHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", models.ErrEmptyImage
	}
	if int64(len(img.Data)) > s.maxFileSizeBytes {
		return "", models.ErrFileTooLarge
	}

	ext := s.extensionFor(img)
	if !s.allowedExtensions[ext] {
		return "", models.ErrInvalidExtension
	}

	sum := sha256.Sum256(img.Data)
	name := hex.EncodeToString(sum[:]) + ext

	now := s.now().UTC()
	relativeFolderPath := filepath.Join(now.Format("2006"), now.Format("01"))
	absoluteFolderPath := filepath.Join(s.basePath, relativeFolderPath)
	if err := os.MkdirAll(absoluteFolderPath, 0755); err != nil {
		return "", err
	}

	relativeFilePath := filepath.Join(relativeFolderPath, name)
	ref := filepath.ToSlash(relativeFilePath)
	absoluteFilePath := filepath.Join(s.basePath, relativeFilePath)

	file, err := os.OpenFile(absoluteFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		return ref, nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, bytes.NewReader(img.Data)); err != nil {
		os.Remove(absoluteFilePath) // Clean up on error
		return "", err
	}

	return ref, nil
}

func (s *PhotoStorageService) extensionFor(img checkin.ImageHandle) string {
	if img.Filename != "" {
		if ext := strings.ToLower(filepath.Ext(sanitizeFilename(img.Filename))); ext != "" {
			return ext
		}
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(img.ContentType, ";")[0]))
	return contentTypeExtensions[contentType]
}

// Delete removes a file by its storage reference
func (s *PhotoStorageService) Delete(storedPath string) bool {
	if strings.TrimSpace(storedPath) == "" {
		return false
	}

	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return false
	}

	return os.Remove(fullPath) == nil
}

// GetFullPath returns the absolute path for a storage reference
func (s *PhotoStorageService) GetFullPath(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", fmt.Errorf("stored path cannot be empty")
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storedPath))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	if absPath != s.basePath && !strings.HasPrefix(absPath, s.basePath+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

// Exists checks if a file exists at the given storage reference
func (s *PhotoStorageService) Exists(storedPath string) bool {
	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return false
	}

	_, err = os.Stat(fullPath)
	return err == nil
}

// sanitizeFilename removes path components and invalid characters
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
