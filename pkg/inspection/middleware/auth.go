package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/helpers/problem"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Principals resolves bearer tokens and loads users.
type Principals interface {
	ParseToken(token string) (uint, error)
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// RequireUser resolves the caller from "Authorization: Bearer <jwt>" or
// else the session cookie, and aborts with 401 when neither names an
// existing user.
func RequireUser(sess *Sessions, principals Principals) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			id uint
			ok bool
		)

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				abortProblem(c, problem.NewUnauthorized("Missing or invalid Authorization header"))
				return
			}
			parsed, err := principals.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				abortProblem(c, problem.NewUnauthorized("Invalid or expired token"))
				return
			}
			id, ok = parsed, true
			c.Set("auth_method", "jwt_token")
		} else {
			id, ok = sess.UserID(c)
			c.Set("auth_method", "session")
		}

		if !ok {
			abortProblem(c, problem.NewUnauthorized("Login required"))
			return
		}

		user, err := principals.UserByID(c.Request.Context(), id)
		if err != nil {
			abortProblem(c, problem.NewInternalServerError("Could not resolve the current user"))
			return
		}
		if user == nil {
			abortProblem(c, problem.NewUnauthorized("Login required"))
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// Principal returns the user stored by RequireUser.
func Principal(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func abortProblem(c *gin.Context, apiErr problem.APIError) {
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

// WriteProblem renders apiErr for handlers outside tonic.
func WriteProblem(c *gin.Context, apiErr problem.APIError) {
	if apiErr.Status == 0 {
		apiErr.Status = http.StatusInternalServerError
	}
	abortProblem(c, apiErr)
}
