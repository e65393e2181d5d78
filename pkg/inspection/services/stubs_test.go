package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01")
	gifBytes  = []byte("GIF89a\x01\x00\x01\x00")
)

// stubDetectionRepo mocks DetectionRepository for service tests
type stubDetectionRepo struct {
	createFunc     func(ctx context.Context, d *models.Detection) error
	listFunc       func(ctx context.Context, ownerID uint) ([]models.Detection, error)
	deleteFunc     func(ctx context.Context, ownerID, id uint) (*models.Detection, error)
	statsFunc      func(ctx context.Context, ownerID uint) (models.DetectionStats, error)
	referencedFunc func(ctx context.Context) (map[string]struct{}, error)
	countByImgFunc func(ctx context.Context, ownerID uint, ref string) (int64, error)
	created        []*models.Detection
}

func (s *stubDetectionRepo) Create(ctx context.Context, d *models.Detection) error {
	if s.createFunc != nil {
		if err := s.createFunc(ctx, d); err != nil {
			return err
		}
	}
	d.ID = uint(len(s.created) + 1)
	s.created = append(s.created, d)
	return nil
}
func (s *stubDetectionRepo) ListByOwner(ctx context.Context, ownerID uint) ([]models.Detection, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, ownerID)
}
func (s *stubDetectionRepo) DeleteOwned(ctx context.Context, ownerID, id uint) (*models.Detection, error) {
	return s.deleteFunc(ctx, ownerID, id)
}
func (s *stubDetectionRepo) Stats(ctx context.Context, ownerID uint) (models.DetectionStats, error) {
	return s.statsFunc(ctx, ownerID)
}
func (s *stubDetectionRepo) ReferencedImages(ctx context.Context) (map[string]struct{}, error) {
	if s.referencedFunc == nil {
		return map[string]struct{}{}, nil
	}
	return s.referencedFunc(ctx)
}
func (s *stubDetectionRepo) CountByImage(ctx context.Context, ownerID uint, ref string) (int64, error) {
	if s.countByImgFunc == nil {
		return 0, nil
	}
	return s.countByImgFunc(ctx, ownerID, ref)
}

// failingBlobs wraps a real store and fails the selected operations.
type failingBlobs struct {
	inner     *blobstore.Store
	storeErr  error
	deleteErr error
}

func (f *failingBlobs) Store(ctx context.Context, ownerID uint, data []byte, name string) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	return f.inner.Store(ctx, ownerID, data, name)
}

func (f *failingBlobs) Exists(ref string) (bool, error) { return f.inner.Exists(ref) }

func (f *failingBlobs) Delete(ref string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.inner.Delete(ref)
}

func (f *failingBlobs) List() ([]blobstore.BlobInfo, error) { return f.inner.List() }

var errDisk = errors.New("disk full")

func newBlobStore(t *testing.T) *blobstore.Store {
	t.Helper()
	s, err := blobstore.New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
