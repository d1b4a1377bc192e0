package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ZaguanLabs/transcache"
	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the media type for Problem Details responses.
const ContentTypeProblemJSON = "application/problem+json"

// ProblemDetail represents an RFC 7807 Problem Details response.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with an additional extension property.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

// Problem types as URI references.
const (
	TypeValidation        = "/problems/validation-error"
	TypeBadRequest        = "/problems/bad-request"
	TypeTranslationFailed = "/problems/translation-failed"
	TypeEngineUnavailable = "/problems/engine-unavailable"
	TypeInternal          = "/problems/internal-error"
)

var (
	errValidation = ProblemDetail{
		Type:   TypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
	}

	errBadRequest = ProblemDetail{
		Type:   TypeBadRequest,
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
	}

	errTranslationFailed = ProblemDetail{
		Type:   TypeTranslationFailed,
		Title:  "Translation Failed",
		Status: http.StatusBadGateway,
	}

	errEngineUnavailable = ProblemDetail{
		Type:   TypeEngineUnavailable,
		Title:  "Translation Engine Unavailable",
		Status: http.StatusServiceUnavailable,
	}

	errInternal = ProblemDetail{
		Type:   TypeInternal,
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	}
)

// problemFor maps pipeline errors to a ProblemDetail.
func problemFor(err error) ProblemDetail {
	var problem ProblemDetail
	if errors.As(err, &problem) {
		return problem
	}

	var validation *transcache.ValidationError
	if errors.As(err, &validation) {
		p := errValidation.WithDetail(validation.Error())
		if validation.Field != "" {
			p = p.WithExtension("fields", map[string]string{validation.Field: validation.Message})
		}
		return p
	}

	var unavailable *transcache.EngineUnavailableError
	if errors.As(err, &unavailable) {
		return errEngineUnavailable.WithDetail("the translation engine could not be reached")
	}

	var partial *transcache.PartialTranslationError
	if errors.As(err, &partial) {
		failed := make([]map[string]int, len(partial.Failed))
		for i, f := range partial.Failed {
			failed[i] = map[string]int{"batch": f.Index, "offset": f.Offset, "size": f.Size}
		}
		return errTranslationFailed.
			WithDetail(fmt.Sprintf("%d of %d engine batches failed", len(partial.Failed), partial.Batches)).
			WithExtension("failed_batches", failed)
	}

	return errInternal.WithDetail("unexpected error while handling the request")
}

// respond sends a ProblemDetail response with proper content type.
func respond(c *gin.Context, problem ProblemDetail) {
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	if id := c.GetString(requestIDKey); id != "" {
		problem = problem.WithExtension("request_id", id)
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.AbortWithStatusJSON(problem.Status, problem)
}
