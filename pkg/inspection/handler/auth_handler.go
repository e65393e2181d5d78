package handler

import (
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/middleware"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/services"
	"github.com/gin-gonic/gin"
)

// AuthController binds the account endpoints to the AuthService
type AuthController struct {
	Service  *services.AuthService
	Sessions *middleware.Sessions
}

func NewAuthController(s *services.AuthService, sess *middleware.Sessions) *AuthController {
	return &AuthController{Service: s, Sessions: sess}
}

// Register handles POST /users
func (c *AuthController) Register(ctx *gin.Context, body *models.RegisterInput) (*models.UserView, error) {
	u, err := c.Service.Register(ctx.Request.Context(), *body)
	if err != nil {
		return nil, toProblem(err)
	}
	view := toUserView(u)
	return &view, nil
}

// Login handles POST /sessions
func (c *AuthController) Login(ctx *gin.Context, body *models.LoginInput) (*models.SessionResponse, error) {
	u, token, err := c.Service.Login(ctx.Request.Context(), body.Username, body.Password)
	if err != nil {
		return nil, toProblem(err)
	}
	if err := c.Sessions.Login(ctx, u.ID); err != nil {
		return nil, toProblem(err)
	}
	return &models.SessionResponse{User: toUserView(u), Token: token}, nil
}

// Logout handles DELETE /sessions
func (c *AuthController) Logout(ctx *gin.Context) error {
	if err := c.Sessions.Logout(ctx); err != nil {
		return toProblem(err)
	}
	return nil
}

func toUserView(u *models.User) models.UserView {
	return models.UserView{Id: u.ID, DisplayName: u.DisplayName, Username: u.Username}
}
