package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/helpers/problem"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/middleware"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	resultPath      = "/v1/result"
	historyPath     = "/v1/detections"
	multipartMemory = 8 << 20
)

// ImageOpener serves stored images.
type ImageOpener interface {
	Open(ref string) (*os.File, error)
}

// InspectionController binds the detect, result, history and dashboard
// endpoints to the services.
type InspectionController struct {
	Intake   *services.IntakeService
	History  *services.HistoryService
	Sessions *middleware.Sessions
	Images   ImageOpener
	MaxBytes int64
	logger   *log.Logger
}

func NewInspectionController(intake *services.IntakeService, history *services.HistoryService, sess *middleware.Sessions, images ImageOpener, maxBytes int64, logger *log.Logger) *InspectionController {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &InspectionController{
		Intake:   intake,
		History:  history,
		Sessions: sess,
		Images:   images,
		MaxBytes: maxBytes,
		logger:   logger.WithPrefix("http"),
	}
}

// Detect handles POST /detect. A non-empty file part wins over camera_data.
func (h *InspectionController) Detect(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		middleware.WriteProblem(c, problem.NewUnauthorized("Login required"))
		return
	}

	src, err := h.imageSource(c)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.WriteProblem(c, middleware.TooLarge(h.MaxBytes))
			return
		}
		middleware.WriteProblem(c, problem.NewBadRequest("body", "Request body could not be read"))
		return
	}

	if _, err := h.Intake.Intake(c.Request.Context(), user.ID, src); err != nil {
		middleware.WriteProblem(c, toProblem(err))
		return
	}
	c.Redirect(http.StatusSeeOther, resultPath)
}

func (h *InspectionController) imageSource(c *gin.Context) (services.ImageSource, error) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	if form := c.Request.MultipartForm; form != nil {
		defer func() { _ = form.RemoveAll() }()
	}

	if fh, err := c.FormFile("file"); err == nil && fh.Filename != "" && fh.Size > 0 {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return services.UploadedFile{Filename: fh.Filename, Data: data}, nil
	}

	if capture := c.PostForm("camera_data"); strings.TrimSpace(capture) != "" {
		return services.InlineCapture{DataURL: capture}, nil
	}
	return nil, nil
}

// Result handles GET /result. The pending result is handed out once.
func (h *InspectionController) Result(c *gin.Context) (*models.ResultResponse, error) {
	user, ok := middleware.Principal(c)
	if !ok {
		return nil, problem.NewUnauthorized("Login required")
	}
	pending, _ := h.Intake.Consume(user.ID)
	return &models.ResultResponse{
		Pending: services.ToPendingView(pending),
		Notices: h.Sessions.Notices(c),
	}, nil
}

// Confirm handles POST /detections. The older form field names hasil,
// image_path and timestamp_db are still accepted.
func (h *InspectionController) Confirm(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		middleware.WriteProblem(c, problem.NewUnauthorized("Login required"))
		return
	}

	var in models.ConfirmInput
	if err := c.ShouldBindWith(&in, binding.Form); err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.WriteProblem(c, middleware.TooLarge(h.MaxBytes))
			return
		}
		middleware.WriteProblem(c, problem.NewBadRequest("body", "Form could not be read"))
		return
	}
	in.Verdict = firstNonEmpty(in.Verdict, c.PostForm("hasil"))
	in.ImageReference = firstNonEmpty(in.ImageReference, c.PostForm("image_path"))
	in.Timestamp = firstNonEmpty(in.Timestamp, c.PostForm("timestamp_db"))

	if _, err := h.History.Confirm(c.Request.Context(), user.ID, in); err != nil {
		if errors.Is(err, services.ErrOwnership) {
			middleware.WriteProblem(c, problem.NewNotFound("image_reference", "Image not found"))
			return
		}
		middleware.WriteProblem(c, toProblem(err))
		return
	}
	h.notice(c, "success", "Detection saved to history")
	c.Redirect(http.StatusSeeOther, historyPath)
}

// ListDetections handles GET /detections
func (h *InspectionController) ListDetections(c *gin.Context) (*models.HistoryResponse, error) {
	user, ok := middleware.Principal(c)
	if !ok {
		return nil, problem.NewUnauthorized("Login required")
	}
	views, err := h.History.List(c.Request.Context(), user.ID)
	if err != nil {
		return nil, toProblem(err)
	}
	return &models.HistoryResponse{Detections: views, Notices: h.Sessions.Notices(c)}, nil
}

// Delete handles POST /detections/:id/delete. It always redirects back to
// the history; the outcome travels as a notice.
func (h *InspectionController) Delete(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		middleware.WriteProblem(c, problem.NewUnauthorized("Login required"))
		return
	}

	var params models.DetectionParams
	switch err := c.ShouldBindUri(&params); {
	case err != nil:
		h.notice(c, "error", services.ErrOwnership.Error())
	default:
		err := h.History.Delete(c.Request.Context(), user.ID, params.Id)
		switch {
		case err == nil:
			h.notice(c, "success", "Detection deleted")
		case errors.Is(err, services.ErrOwnership):
			h.notice(c, "error", services.ErrOwnership.Error())
		default:
			h.notice(c, "error", "Detection could not be deleted")
		}
	}
	c.Redirect(http.StatusSeeOther, historyPath)
}

// Dashboard handles GET /dashboard
func (h *InspectionController) Dashboard(c *gin.Context) (*models.DashboardResponse, error) {
	user, ok := middleware.Principal(c)
	if !ok {
		return nil, problem.NewUnauthorized("Login required")
	}
	stats, err := h.History.Stats(c.Request.Context(), user.ID)
	if err != nil {
		return nil, toProblem(err)
	}
	return &models.DashboardResponse{
		DisplayName:     user.DisplayName,
		TotalDetections: stats.Total,
		Defective:       stats.Defective,
		Passed:          stats.Passed,
	}, nil
}

// ServeImage handles GET /uploads/*ref. Only the user an image was stored
// for can fetch it; everyone else gets the same 404 as for a missing file.
func (h *InspectionController) ServeImage(c *gin.Context) {
	user, ok := middleware.Principal(c)
	if !ok {
		middleware.WriteProblem(c, problem.NewUnauthorized("Login required"))
		return
	}
	ref := blobstore.RefPrefix + strings.TrimPrefix(c.Param("ref"), "/")
	if !blobstore.OwnedBy(ref, user.ID) {
		middleware.WriteProblem(c, problem.NewNotFound("ref", "Image not found"))
		return
	}
	f, err := h.Images.Open(ref)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrOutsideRoot) {
			middleware.WriteProblem(c, problem.NewNotFound("ref", "Image not found"))
			return
		}
		h.logger.Error("failed to open image", "ref", ref, "err", err)
		middleware.WriteProblem(c, problem.NewInternalServerError("Image could not be read"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat image", "ref", ref, "err", err)
		middleware.WriteProblem(c, problem.NewInternalServerError("Image could not be read"))
		return
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "private, max-age=86400, immutable")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func (h *InspectionController) notice(c *gin.Context, level, message string) {
	if err := h.Sessions.AddNotice(c, level, message); err != nil {
		h.logger.Warn("failed to queue notice", "err", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
