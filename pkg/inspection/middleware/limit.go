package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/helpers/problem"
	"github.com/gin-gonic/gin"
)

// BodyLimit rejects request bodies larger than max before any handler
// parses them.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			abortProblem(c, tooLarge(max))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

// IsBodyTooLarge reports whether err came from a body cut off by BodyLimit.
func IsBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	// mime/multipart and ParseForm do not always wrap the reader error
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "request body too large") || strings.Contains(msg, "POST too large")
}

// TooLarge is the problem returned for oversized bodies.
func TooLarge(max int64) problem.APIError { return tooLarge(max) }

func tooLarge(max int64) problem.APIError {
	return problem.NewPayloadTooLarge(fmt.Sprintf("Request body exceeds %d bytes", max))
}
