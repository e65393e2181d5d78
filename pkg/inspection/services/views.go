package services

import (
	"fmt"
	"time"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
)

// ToDetectionView builds the external form of d, with times shown in loc.
func ToDetectionView(d models.Detection, loc *time.Location) models.DetectionView {
	at := d.RecordedAt.In(loc)
	return models.DetectionView{
		Id:             d.ID,
		ImageReference: d.ImageReference,
		Verdict:        d.Verdict,
		Score:          d.Score,
		ScoreLabel:     models.ScoreLabel(d.Score),
		RecordedAt:     at.Format(models.DisplayTimeLayout),
		RecordedAtDB:   at.Format(models.CanonicalTimeLayout),
		Links: &models.Links{
			Image:  &models.Link{Href: imageHref(d.ImageReference)},
			Delete: &models.Link{Href: fmt.Sprintf("/v1/detections/%d/delete", d.ID)},
		},
	}
}

// ToPendingView carries exactly what the confirm surface needs back.
func ToPendingView(p *models.PendingResult) *models.PendingView {
	if p == nil {
		return nil
	}
	return &models.PendingView{
		Verdict:        p.Outcome.Verdict,
		Score:          p.Outcome.Score,
		ScoreLabel:     models.ScoreLabel(p.Outcome.Score),
		Placeholder:    p.Outcome.Placeholder,
		ImageReference: p.ImageRef,
		Timestamp:      p.CapturedAt,
		TimestampDB:    p.CapturedAtDB,
		Links: &models.Links{
			Self:  &models.Link{Href: "/v1/result"},
			Image: &models.Link{Href: imageHref(p.ImageRef)},
		},
	}
}

func imageHref(ref string) string {
	return "/v1/" + ref
}
