package handler

import (
	"errors"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/helpers/problem"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/services"
)

// toProblem maps service errors onto problem details. Unknown errors become
// a generic 500; driver and filesystem text never reaches the client.
func toProblem(err error) problem.APIError {
	var apiErr problem.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		params := make([]problem.InvalidParam, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			params = append(params, problem.InvalidParam{Name: f.Field, Reason: f.Message, Code: string(f.Kind)})
		}
		return problem.NewBadRequest("body", "Detection could not be recorded", params...)
	}

	var ierr *services.IntakeError
	if errors.As(err, &ierr) {
		switch ierr.Kind {
		case services.IntakeNoImage:
			return problem.NewBadRequest("file", "No image was uploaded or captured",
				problem.InvalidParam{Name: "file", Reason: "upload a file or capture a photo", Code: string(ierr.Kind)})
		case services.IntakeMalformedCapture:
			return problem.NewBadRequest("camera_data", "Camera capture could not be decoded",
				problem.InvalidParam{Name: "camera_data", Reason: "expected a base64 data URL", Code: string(ierr.Kind)})
		case services.IntakeUnsupported:
			return problem.NewUnsupportedMediaType("file", "Only PNG and JPEG images are accepted")
		default:
			return problem.NewInternalServerError("The image could not be stored")
		}
	}

	switch {
	case errors.Is(err, services.ErrInvalidRegistration):
		return problem.NewBadRequest("body", "displayName, username and a password of at least 8 characters are required")
	case errors.Is(err, services.ErrUsernameTaken):
		return problem.NewConflict("username", "Username is already taken")
	case errors.Is(err, services.ErrInvalidCredentials):
		return problem.NewUnauthorized("Invalid username or password")
	case errors.Is(err, services.ErrTooManyAttempts):
		return problem.NewTooManyRequests("Too many login attempts, try again later")
	case errors.Is(err, services.ErrOwnership):
		return problem.NewNotFound("id", "Detection not found")
	}

	return problem.NewInternalServerError("Something went wrong")
}
