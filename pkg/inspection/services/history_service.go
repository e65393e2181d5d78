package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/metrics"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
)

// HistoryService records confirmed results and manages each user's history.
type HistoryService struct {
	repo     repositories.DetectionRepository
	blobs    BlobStore
	metrics  *metrics.InspectionMetrics
	logger   *log.Logger
	location *time.Location
}

func NewHistoryService(repo repositories.DetectionRepository, blobs BlobStore, m *metrics.InspectionMetrics, logger *log.Logger) *HistoryService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &HistoryService{
		repo:     repo,
		blobs:    blobs,
		metrics:  m,
		logger:   logger.WithPrefix("history"),
		location: time.Local,
	}
}

// Confirm re-validates a submitted result and records it for owner. Nothing
// is written unless every field is acceptable and the image was stored for
// owner; someone else's image yields ErrOwnership.
func (s *HistoryService) Confirm(ctx context.Context, ownerID uint, in models.ConfirmInput) (*models.Detection, error) {
	d, err := s.validate(ownerID, in)
	if err != nil {
		s.metrics.RecordConfirm(metrics.ResultRejected)
		if errors.Is(err, ErrOwnership) {
			s.logger.Warn("rejected foreign image", "owner", ownerID, "ref", in.ImageReference)
		}
		return nil, err
	}
	d.OwnerUserID = ownerID

	if err := s.repo.Create(ctx, d); err != nil {
		s.logger.Error("failed to record detection", "owner", ownerID, "ref", d.ImageReference, "err", err)
		s.metrics.RecordConfirm(metrics.ResultError)
		return nil, fmt.Errorf("record detection: %w", err)
	}
	s.metrics.RecordConfirm(metrics.ResultOK)
	s.logger.Info("detection recorded", "owner", ownerID, "id", d.ID, "verdict", d.Verdict)
	return d, nil
}

func (s *HistoryService) validate(ownerID uint, in models.ConfirmInput) (*models.Detection, error) {
	verr := &ValidationError{}
	d := &models.Detection{}
	foreign := false

	if raw := strings.TrimSpace(in.Verdict); raw == "" {
		verr.add("verdict", FieldMissing, "is required")
	} else if v, err := models.ParseVerdict(raw); err != nil {
		verr.add("verdict", FieldInvalidVerdict, fmt.Sprintf("%q is not a known verdict", raw))
	} else {
		d.Verdict = v
	}

	if raw := strings.TrimSpace(in.Score); raw == "" {
		verr.add("score", FieldMissing, "is required")
	} else if score, ok := parseScore(raw); !ok {
		verr.add("score", FieldUnparseableScore, "must be a number between 0 and 100")
	} else {
		d.Score = score
	}

	if raw := strings.TrimSpace(in.ImageReference); raw == "" {
		verr.add("image_reference", FieldMissing, "is required")
	} else if ref, err := blobstore.CanonicalRef(raw); err != nil {
		verr.add("image_reference", FieldUnknownImage, "does not name a stored image")
	} else if ok, err := s.blobs.Exists(ref); err != nil || !ok {
		if err != nil {
			s.logger.Error("failed to check image", "ref", ref, "err", err)
		}
		verr.add("image_reference", FieldUnknownImage, "does not name a stored image")
	} else if !blobstore.OwnedBy(ref, ownerID) {
		foreign = true
	} else {
		d.ImageReference = ref
	}

	if raw := strings.TrimSpace(in.Timestamp); raw == "" {
		verr.add("timestamp", FieldMissing, "is required")
	} else if at, ok := s.parseTimestamp(raw); !ok {
		verr.add("timestamp", FieldUnparseableTimestamp, "must look like "+models.CanonicalTimeLayout)
	} else {
		d.RecordedAt = at
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if foreign {
		return nil, ErrOwnership
	}
	return d, nil
}

// parseScore accepts "92.7", " 92.7 " and "92.70%".
func parseScore(raw string) (float64, bool) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 100 {
		return 0, false
	}
	return math.Round(score*100) / 100, true
}

func (s *HistoryService) parseTimestamp(raw string) (time.Time, bool) {
	if at, err := time.ParseInLocation(models.CanonicalTimeLayout, raw, s.location); err == nil {
		return at, true
	}
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at, true
	}
	return time.Time{}, false
}

// List returns owner's history, newest capture first.
func (s *HistoryService) List(ctx context.Context, ownerID uint) ([]models.DetectionView, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	out := make([]models.DetectionView, 0, len(rows))
	for _, d := range rows {
		out = append(out, ToDetectionView(d, s.location))
	}
	return out, nil
}

// Delete removes one of owner's detections and then its image. The record
// is gone even when the image cannot be removed.
func (s *HistoryService) Delete(ctx context.Context, ownerID, id uint) error {
	deleted, err := s.repo.DeleteOwned(ctx, ownerID, id)
	if errors.Is(err, repositories.ErrNotOwned) {
		s.metrics.RecordDelete(metrics.ResultRejected)
		return ErrOwnership
	}
	if err != nil {
		s.logger.Error("failed to delete detection", "owner", ownerID, "id", id, "err", err)
		s.metrics.RecordDelete(metrics.ResultError)
		return fmt.Errorf("delete detection: %w", err)
	}
	s.metrics.RecordDelete(metrics.ResultOK)
	s.removeImage(ctx, ownerID, deleted.ImageReference)
	return nil
}

// removeImage deletes ref unless another of owner's detections still shows it.
func (s *HistoryService) removeImage(ctx context.Context, ownerID uint, ref string) {
	if !blobstore.OwnedBy(ref, ownerID) {
		s.logger.Warn("keeping image of another owner", "owner", ownerID, "ref", ref)
		return
	}
	inUse, err := s.repo.CountByImage(ctx, ownerID, ref)
	if err != nil {
		s.logger.Error("failed to check image usage, keeping it", "ref", ref, "err", err)
		s.metrics.IncrementBlobDeleteErrors()
		return
	}
	if inUse > 0 {
		return
	}
	if err := s.blobs.Delete(ref); err != nil {
		s.logger.Error("failed to delete image", "ref", ref, "err", err)
		s.metrics.IncrementBlobDeleteErrors()
	}
}

// Stats counts owner's detections per verdict.
func (s *HistoryService) Stats(ctx context.Context, ownerID uint) (models.DetectionStats, error) {
	stats, err := s.repo.Stats(ctx, ownerID)
	if err != nil {
		return models.DetectionStats{}, fmt.Errorf("detection stats: %w", err)
	}
	return stats, nil
}
