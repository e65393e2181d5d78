package problem

import "net/http"

type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

type ErrorDetail struct {
	In       string `json:"in"`
	Location string `json:"location"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

// APIError implementeert error + Problem Details (RFC 7807)
type APIError struct {
	Title  string        `json:"title"`
	Status int           `json:"status"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

func (e APIError) Error() string { return e.Title }

func NewBadRequest(location, detail string, params ...InvalidParam) APIError {
	return APIError{
		Title:  "Request validation failed",
		Status: http.StatusBadRequest,
		Errors: toErrorDetails(params, detail, "body", location, "bad_request"),
	}
}

func NewUnauthorized(detail string) APIError {
	return APIError{
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Errors: toErrorDetails(nil, detail, "header", "Authorization", "unauthorized"),
	}
}

func NewNotFound(location, detail string, params ...InvalidParam) APIError {
	return APIError{
		Title:  "Resource Not Found",
		Status: http.StatusNotFound,
		Errors: toErrorDetails(params, detail, "path", location, "not_found"),
	}
}

func NewConflict(location, detail string) APIError {
	return APIError{
		Title:  "Conflict",
		Status: http.StatusConflict,
		Errors: toErrorDetails(nil, detail, "body", location, "conflict"),
	}
}

func NewPayloadTooLarge(detail string) APIError {
	return APIError{
		Title:  "Payload Too Large",
		Status: http.StatusRequestEntityTooLarge,
		Errors: toErrorDetails(nil, detail, "body", "body", "payload_too_large"),
	}
}

func NewUnsupportedMediaType(location, detail string) APIError {
	return APIError{
		Title:  "Unsupported Media Type",
		Status: http.StatusUnsupportedMediaType,
		Errors: toErrorDetails(nil, detail, "body", location, "unsupported_format"),
	}
}

func NewTooManyRequests(detail string) APIError {
	return APIError{
		Title:  "Too Many Requests",
		Status: http.StatusTooManyRequests,
		Errors: toErrorDetails(nil, detail, "", "", "rate_limited"),
	}
}

// NewInternalServerError never carries driver or filesystem text; callers
// pass a generic category message and log the cause themselves.
func NewInternalServerError(detail string) APIError {
	return APIError{
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Errors: toErrorDetails(nil, detail, "", "", "internal_error"),
	}
}

func toErrorDetails(params []InvalidParam, fallbackDetail, fallbackIn, fallbackLocation, fallbackCode string) []ErrorDetail {
	if len(params) == 0 {
		if fallbackDetail == "" {
			return nil
		}
		return []ErrorDetail{{
			In:       fallbackIn,
			Location: fallbackLocation,
			Code:     fallbackCode,
			Detail:   fallbackDetail,
		}}
	}
	out := make([]ErrorDetail, 0, len(params))
	for _, p := range params {
		code := p.Code
		if code == "" {
			code = p.Name
		}
		out = append(out, ErrorDetail{
			In:       "body",
			Location: p.Name,
			Code:     code,
			Detail:   p.Reason,
		})
	}
	return out
}
