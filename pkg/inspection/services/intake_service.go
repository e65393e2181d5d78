package services

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/metrics"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/oracle"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/staging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

const (
	SourceUpload  = "upload"
	SourceCapture = "capture"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// BlobStore is the part of blobstore.Store the services rely on.
type BlobStore interface {
	Store(ctx context.Context, ownerID uint, data []byte, suggestedName string) (string, error)
	Exists(ref string) (bool, error)
	Delete(ref string) error
	List() ([]blobstore.BlobInfo, error)
}

// Classifier is the part of oracle.Adapter the intake relies on.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (models.Outcome, error)
}

// ImageSource is either an UploadedFile or an InlineCapture.
type ImageSource interface {
	sourceName() string
}

// UploadedFile is a multipart file part.
type UploadedFile struct {
	Filename string
	Data     []byte
}

// InlineCapture is a camera frame sent as a data URL
// ("data:image/jpeg;base64,...").
type InlineCapture struct {
	DataURL string
}

func (UploadedFile) sourceName() string  { return SourceUpload }
func (InlineCapture) sourceName() string { return SourceCapture }

// IntakeService turns an image into a staged, unconfirmed result.
type IntakeService struct {
	blobs   BlobStore
	oracle  Classifier
	staging staging.Store
	metrics *metrics.InspectionMetrics
	logger  *log.Logger
	now     func() time.Time
}

func NewIntakeService(blobs BlobStore, classifier Classifier, stage staging.Store, m *metrics.InspectionMetrics, logger *log.Logger) *IntakeService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &IntakeService{
		blobs:   blobs,
		oracle:  classifier,
		staging: stage,
		metrics: m,
		logger:  logger.WithPrefix("intake"),
		now:     time.Now,
	}
}

// Intake stores the image, classifies it and stages the outcome for owner,
// replacing anything that was still pending. The oracle never makes an
// intake fail; a store failure always does.
func (s *IntakeService) Intake(ctx context.Context, ownerID uint, src ImageSource) (*models.PendingResult, error) {
	if src == nil {
		s.metrics.RecordIntake("none", metrics.ResultRejected)
		return nil, newIntakeError(IntakeNoImage, nil)
	}
	source := src.sourceName()

	data, name, err := s.resolve(src)
	if err != nil {
		s.metrics.RecordIntake(source, metrics.ResultRejected)
		return nil, err
	}

	ref, err := s.blobs.Store(ctx, ownerID, data, name)
	if err != nil {
		s.logger.Error("failed to store image", "owner", ownerID, "name", name, "err", err)
		s.metrics.RecordIntake(source, metrics.ResultError)
		return nil, newIntakeError(IntakePersistence, err)
	}
	s.metrics.AddBlobBytes(len(data))

	started := time.Now()
	outcome, err := s.oracle.Classify(ctx, data)
	if err != nil {
		s.logger.Warn("classification unavailable, using placeholder", "owner", ownerID, "ref", ref, "err", err)
		outcome = oracle.Placeholder()
	}
	s.metrics.ObserveOracle(time.Since(started).Seconds(), outcome.Placeholder)

	result := models.NewPendingResult(outcome, ref, source, s.now())
	s.staging.Stage(staging.KeyFor(ownerID), result)
	s.metrics.RecordIntake(source, metrics.ResultOK)

	s.logger.Info("image classified", "owner", ownerID, "ref", ref, "verdict", outcome.Verdict, "score", outcome.Score)
	return result, nil
}

// Consume hands out the owner's pending result once.
func (s *IntakeService) Consume(ownerID uint) (*models.PendingResult, bool) {
	return s.staging.Consume(staging.KeyFor(ownerID))
}

func (s *IntakeService) resolve(src ImageSource) ([]byte, string, error) {
	switch v := src.(type) {
	case UploadedFile:
		return resolveUpload(v)
	case *UploadedFile:
		return resolveUpload(*v)
	case InlineCapture:
		return resolveCapture(v)
	case *InlineCapture:
		return resolveCapture(*v)
	default:
		return nil, "", newIntakeError(IntakeNoImage, nil)
	}
}

func resolveUpload(f UploadedFile) ([]byte, string, error) {
	if len(f.Data) == 0 {
		return nil, "", newIntakeError(IntakeNoImage, nil)
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	if !allowedExtensions[ext] && sniffImageExt(f.Data) == "" {
		return nil, "", newIntakeError(IntakeUnsupported, errors.New(mimetype.Detect(f.Data).String()))
	}
	return f.Data, f.Filename, nil
}

func resolveCapture(c InlineCapture) ([]byte, string, error) {
	raw := strings.TrimSpace(c.DataURL)
	if raw == "" {
		return nil, "", newIntakeError(IntakeNoImage, nil)
	}
	_, payload, found := strings.Cut(raw, ",")
	if !found {
		return nil, "", newIntakeError(IntakeMalformedCapture, errors.New("missing data URL separator"))
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", newIntakeError(IntakeMalformedCapture, err)
	}
	if len(data) == 0 {
		return nil, "", newIntakeError(IntakeNoImage, nil)
	}

	ext := sniffImageExt(data)
	if ext == "" {
		ext = "jpeg"
	}
	return data, "capture_" + captureToken() + "." + ext, nil
}

// sniffImageExt returns "png" or "jpg" for the accepted image types.
func sniffImageExt(data []byte) string {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/png"):
		return "png"
	case mt.Is("image/jpeg"):
		return "jpg"
	default:
		return ""
	}
}

func captureToken() string {
	if id, err := shortid.Generate(); err == nil {
		return id
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
