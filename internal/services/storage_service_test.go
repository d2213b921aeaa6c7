package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/models"
)

func setupTestStorage(t *testing.T) *PhotoStorageService {
	t.Helper()

	svc, err := NewPhotoStorageService(t.TempDir(), nil, 1)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

	return svc
}

func frame(data string) checkin.ImageHandle {
	return checkin.ImageHandle{Data: []byte(data), ContentType: "image/jpeg", Filename: "left.jpg"}
}

func TestPhotoStorageService_UploadImage(t *testing.T) {
	ctx := context.Background()

	t.Run("stores file in Year/Month folder", func(t *testing.T) {
		svc := setupTestStorage(t)

		ref, err := svc.UploadImage(ctx, frame("fake image content"))

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "2024/03/"))
		assert.True(t, strings.HasSuffix(ref, ".jpg"))
		assert.True(t, svc.Exists(ref))
	})

	t.Run("identical content reuses the stored file", func(t *testing.T) {
		svc := setupTestStorage(t)

		first, err := svc.UploadImage(ctx, frame("same bytes"))
		require.NoError(t, err)
		second, err := svc.UploadImage(ctx, frame("same bytes"))
		require.NoError(t, err)
		other, err := svc.UploadImage(ctx, frame("other bytes"))
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
	})

	t.Run("derives the extension from the content type", func(t *testing.T) {
		svc := setupTestStorage(t)

		ref, err := svc.UploadImage(ctx, checkin.ImageHandle{Data: []byte("png"), ContentType: "image/png"})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(ref, ".png"))
	})

	t.Run("rejects disallowed extensions", func(t *testing.T) {
		svc := setupTestStorage(t)

		_, err := svc.UploadImage(ctx, checkin.ImageHandle{Data: []byte("x"), Filename: "malware.exe"})
		assert.ErrorIs(t, err, models.ErrInvalidExtension)

		_, err = svc.UploadImage(ctx, checkin.ImageHandle{Data: []byte("x"), ContentType: "text/plain"})
		assert.ErrorIs(t, err, models.ErrInvalidExtension)
	})

	t.Run("rejects empty and oversized frames", func(t *testing.T) {
		svc := setupTestStorage(t)

		_, err := svc.UploadImage(ctx, checkin.ImageHandle{Filename: "left.jpg"})
		assert.ErrorIs(t, err, models.ErrEmptyImage)

		big := make([]byte, 1024*1024+1)
		_, err = svc.UploadImage(ctx, checkin.ImageHandle{Data: big, Filename: "left.jpg"})
		assert.ErrorIs(t, err, models.ErrFileTooLarge)
	})

	t.Run("strips path components from the filename", func(t *testing.T) {
		svc := setupTestStorage(t)

		ref, err := svc.UploadImage(ctx, checkin.ImageHandle{Data: []byte("x"), Filename: "../../../etc/passwd.jpg"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "2024/03/"))
		assert.NotContains(t, ref, "..")
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		svc := setupTestStorage(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.UploadImage(cctx, frame("late"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPhotoStorageService_Delete(t *testing.T) {
	t.Run("deletes existing file", func(t *testing.T) {
		svc := setupTestStorage(t)
		ref, err := svc.UploadImage(context.Background(), frame("to delete"))
		require.NoError(t, err)

		assert.True(t, svc.Delete(ref))
		assert.False(t, svc.Exists(ref))
	})

	t.Run("returns false for non-existent file", func(t *testing.T) {
		svc := setupTestStorage(t)

		assert.False(t, svc.Delete("2024/01/nonexistent.jpg"))
		assert.False(t, svc.Delete(""))
	})
}

func TestPhotoStorageService_GetFullPath(t *testing.T) {
	t.Run("returns full path for valid stored path", func(t *testing.T) {
		svc := setupTestStorage(t)

		fullPath, err := svc.GetFullPath("2024/03/photo.jpg")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(svc.basePath, "2024", "03", "photo.jpg"), fullPath)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		svc := setupTestStorage(t)

		_, err := svc.GetFullPath("../../../etc/passwd")
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})

	t.Run("rejects sibling directories sharing the prefix", func(t *testing.T) {
		svc := setupTestStorage(t)
		sibling := filepath.Base(svc.basePath) + "-evil"

		_, err := svc.GetFullPath("../" + sibling + "/x.jpg")
		assert.ErrorIs(t, err, models.ErrPathTraversal)
	})
}

func TestNewPhotoStorageService(t *testing.T) {
	t.Run("rejects an empty base path", func(t *testing.T) {
		_, err := NewPhotoStorageService("  ", nil, 10)
		assert.Error(t, err)
	})

	t.Run("creates the base directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "photos")
		_, err := NewPhotoStorageService(dir, []string{".JPG"}, 10)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}
