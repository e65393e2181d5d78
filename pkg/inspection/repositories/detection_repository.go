package repositories

import (
	"context"
	"errors"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"gorm.io/gorm"
)

// ErrNotOwned is returned when a detection does not exist for the given
// owner. A missing row and a row of someone else are indistinguishable.
var ErrNotOwned = errors.New("detection not found for owner")

// DetectionRepository stores confirmed detections.
type DetectionRepository interface {
	Create(ctx context.Context, d *models.Detection) error
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Detection, error)
	DeleteOwned(ctx context.Context, ownerID, id uint) (*models.Detection, error)
	Stats(ctx context.Context, ownerID uint) (models.DetectionStats, error)
	ReferencedImages(ctx context.Context) (map[string]struct{}, error)
	CountByImage(ctx context.Context, ownerID uint, ref string) (int64, error)
}

type detectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) DetectionRepository {
	return &detectionRepository{db: db}
}

// Create inserts d in its own transaction.
func (r *detectionRepository) Create(ctx context.Context, d *models.Detection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(d).Error
	})
}

// ListByOwner returns the owner's detections, newest capture first.
func (r *detectionRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Detection, error) {
	var out []models.Detection
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("recorded_at DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOwned selects and deletes the row in one transaction and returns
// what was deleted, so the caller can clean up the image afterwards.
func (r *detectionRepository) DeleteOwned(ctx context.Context, ownerID, id uint) (*models.Detection, error) {
	var deleted models.Detection
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND owner_user_id = ?", id, ownerID).First(&deleted).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotOwned
		}
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND owner_user_id = ?", id, ownerID).Delete(&models.Detection{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotOwned
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// Stats counts the owner's detections per verdict.
func (r *detectionRepository) Stats(ctx context.Context, ownerID uint) (models.DetectionStats, error) {
	var row struct {
		Total     int64
		Defective int64
		Passed    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Detection{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN verdict = ? THEN 1 ELSE 0 END), 0) AS defective, "+
				"COALESCE(SUM(CASE WHEN verdict = ? THEN 1 ELSE 0 END), 0) AS passed",
			string(models.VerdictDefective), string(models.VerdictPassed),
		).
		Where("owner_user_id = ?", ownerID).
		Scan(&row).Error
	if err != nil {
		return models.DetectionStats{}, err
	}
	return models.DetectionStats{Total: row.Total, Defective: row.Defective, Passed: row.Passed}, nil
}

// ReferencedImages returns every image reference still held by a detection.
func (r *detectionRepository) ReferencedImages(ctx context.Context) (map[string]struct{}, error) {
	var refs []string
	if err := r.db.WithContext(ctx).Model(&models.Detection{}).Distinct().Pluck("image_reference", &refs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		out[ref] = struct{}{}
	}
	return out, nil
}

// CountByImage returns how many of owner's detections point at ref.
func (r *detectionRepository) CountByImage(ctx context.Context, ownerID uint, ref string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Detection{}).
		Where("owner_user_id = ? AND image_reference = ?", ownerID, ref).
		Count(&n).Error
	return n, err
}
