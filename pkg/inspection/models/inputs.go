package models

// RegisterInput is the body of POST /users.
type RegisterInput struct {
	DisplayName string `json:"displayName" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
}

// LoginInput is the body of POST /sessions.
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ConfirmInput is the confirm surface payload. Every field arrives as a
// string and is re-validated server side.
type ConfirmInput struct {
	Verdict        string `form:"verdict"`
	Score          string `form:"score"`
	ImageReference string `form:"image_reference"`
	Timestamp      string `form:"timestamp"`
}

// DetectionParams addresses a single detection.
type DetectionParams struct {
	Id uint `uri:"id" binding:"required"`
}
