package models

import "fmt"

// Link representeert een hypermedia-link
type Link struct {
	Href string `json:"href"`
}

// Links bevat de links van een resource
type Links struct {
	Self   *Link `json:"self,omitempty"`
	Image  *Link `json:"image,omitempty"`
	Delete *Link `json:"delete,omitempty"`
}

// Notice is a one-shot message queued for the next rendered response.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// DetectionView is the external form of a Detection.
type DetectionView struct {
	Id             uint    `json:"id"`
	ImageReference string  `json:"imageReference"`
	Verdict        Verdict `json:"verdict"`
	Score          float64 `json:"score"`
	ScoreLabel     string  `json:"scoreLabel"`
	RecordedAt     string  `json:"recordedAt"`
	RecordedAtDB   string  `json:"recordedAtDb"`
	Links          *Links  `json:"_links,omitempty"`
}

// PendingView carries exactly the fields the confirm surface expects back.
type PendingView struct {
	Verdict        Verdict `json:"verdict"`
	Score          float64 `json:"score"`
	ScoreLabel     string  `json:"scoreLabel"`
	Placeholder    bool    `json:"placeholder"`
	ImageReference string  `json:"imageReference"`
	Timestamp      string  `json:"timestamp"`
	TimestampDB    string  `json:"timestampDb"`
	Links          *Links  `json:"_links,omitempty"`
}

type ResultResponse struct {
	Pending *PendingView `json:"pending"`
	Notices []Notice     `json:"notices"`
}

type HistoryResponse struct {
	Detections []DetectionView `json:"detections"`
	Notices    []Notice        `json:"notices"`
}

type DashboardResponse struct {
	DisplayName     string `json:"displayName"`
	TotalDetections int64  `json:"totalDetections"`
	Defective       int64  `json:"defective"`
	Passed          int64  `json:"passed"`
}

// DetectionStats is the aggregate behind the dashboard.
type DetectionStats struct {
	Total     int64
	Defective int64
	Passed    int64
}

type UserView struct {
	Id          uint   `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
}

type SessionResponse struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

// ScoreLabel renders a score the way the operator sees it, e.g. "92.70%".
func ScoreLabel(score float64) string {
	return fmt.Sprintf("%.2f%%", score)
}
