package models

import (
	"time"
)

const (
	// DisplayTimeLayout is how capture times are shown to the operator.
	DisplayTimeLayout = "02 January 2006, 15:04:05"
	// CanonicalTimeLayout is the wire and storage form of a capture time.
	CanonicalTimeLayout = "2006-01-02 15:04:05"
)

// Outcome is the normalized answer of the classification oracle. Score is a
// percentage towards Verdict, never a raw defect probability.
type Outcome struct {
	Verdict     Verdict `json:"verdict"`
	Score       float64 `json:"score"`
	Placeholder bool    `json:"placeholder"`
}

// PendingResult is an unconfirmed outcome staged for one principal.
type PendingResult struct {
	Outcome      Outcome
	ImageRef     string
	CapturedAt   string
	CapturedAtDB string
	Source       string
}

// NewPendingResult formats both timestamps from the same instant.
func NewPendingResult(outcome Outcome, imageRef, source string, at time.Time) *PendingResult {
	return &PendingResult{
		Outcome:      outcome,
		ImageRef:     imageRef,
		CapturedAt:   at.Format(DisplayTimeLayout),
		CapturedAtDB: at.Format(CanonicalTimeLayout),
		Source:       source,
	}
}

// User is an operator account.
type User struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	DisplayName  string    `gorm:"column:display_name;not null" json:"displayName"`
	Username     string    `gorm:"column:username;size:191;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"-"`
}

// Detection is a confirmed classification kept in the operator's history.
// RecordedAt is the capture time; CreatedAt is when it was confirmed.
type Detection struct {
	ID             uint      `gorm:"column:id;primaryKey"`
	OwnerUserID    uint      `gorm:"column:owner_user_id;not null;index:idx_detection_owner_recorded,priority:1"`
	Owner          *User     `gorm:"foreignKey:OwnerUserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ImageReference string    `gorm:"column:image_reference;size:512;not null"`
	Verdict        Verdict   `gorm:"column:verdict;size:16;not null"`
	Score          float64   `gorm:"column:score;not null"`
	RecordedAt     time.Time `gorm:"column:recorded_at;not null;index:idx_detection_owner_recorded,priority:2"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// Outcome rebuilds the classification pair of a stored detection.
func (d Detection) Outcome() Outcome {
	return Outcome{Verdict: d.Verdict, Score: d.Score}
}
