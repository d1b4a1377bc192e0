package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ZaguanLabs/transcache"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type handler struct {
	svc          Translator
	logger       *zap.Logger
	maxBodyBytes int64
}

type translateRequest struct {
	Texts        []string          `json:"texts" binding:"required"`
	ValueIDs     []json.RawMessage `json:"value_ids" binding:"required"`
	SourceLocale string            `json:"source_locale" binding:"required"`
	TargetLocale string            `json:"target_locale" binding:"required"`
}

type translateResponse struct {
	Translations    map[string]string `json:"translations"`
	CachedCount     int               `json:"cached_count"`
	TranslatedCount int               `json:"translated_count"`
}

type modelStatus struct {
	Loaded bool    `json:"loaded"`
	Name   *string `json:"name"`
}

type healthResponse struct {
	Status             string      `json:"status"`
	Service            string      `json:"service"`
	Version            string      `json:"version"`
	Model              modelStatus `json:"model"`
	Redis              string      `json:"redis"`
	SupportedLanguages []string    `json:"supported_languages"`
}

// health handles GET /health.
func (h *handler) health(c *gin.Context) {
	st := h.svc.Status(c.Request.Context())

	resp := healthResponse{
		Status:             "healthy",
		Service:            st.Service,
		Version:            st.Version,
		Model:              modelStatus{Loaded: st.ModelLoaded},
		Redis:              string(st.Cache),
		SupportedLanguages: st.SupportedLanguages,
	}
	if st.ModelLoaded && st.ModelName != "" {
		name := st.ModelName
		resp.Model.Name = &name
	}

	code := http.StatusOK
	if !st.Healthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// translate handles POST /translate.
func (h *handler) translate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)

	var body translateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond(c, bindProblem(err))
		return
	}

	req, err := body.toRequest()
	if err != nil {
		respond(c, problemFor(err))
		return
	}

	resp, err := h.svc.Handle(c.Request.Context(), req)
	if err != nil {
		problem := problemFor(err)
		if problem.Status >= http.StatusInternalServerError {
			h.logger.Error("translation failed",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Int("status", problem.Status),
				zap.Error(err),
			)
		}
		respond(c, problem)
		return
	}

	c.JSON(http.StatusOK, translateResponse{
		Translations:    resp.Translations,
		CachedCount:     resp.CachedCount,
		TranslatedCount: resp.TranslatedCount,
	})
}

func (r translateRequest) toRequest() (transcache.Request, error) {
	if len(r.Texts) != len(r.ValueIDs) {
		return transcache.Request{}, &transcache.ValidationError{
			Field:   "value_ids",
			Message: fmt.Sprintf("has %d entries but texts has %d", len(r.ValueIDs), len(r.Texts)),
		}
	}

	items := make([]transcache.Item, len(r.Texts))
	for i, raw := range r.ValueIDs {
		id, err := parseValueID(raw)
		if err != nil {
			return transcache.Request{}, &transcache.ValidationError{
				Field:   "value_ids",
				Message: fmt.Sprintf("entry %d %s", i, err),
			}
		}
		items[i] = transcache.Item{ID: id, Text: r.Texts[i]}
	}

	return transcache.Request{
		Items:   items,
		Locales: transcache.LocalePair{Source: r.SourceLocale, Target: r.TargetLocale},
	}, nil
}

// parseValueID accepts a JSON string or integer. Integers keep their literal
// form, so 7 and "7" name the same item.
func parseValueID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("is empty")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.New("is not a valid string")
		}
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", errors.New("is not valid JSON")
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", errors.New("must be an integer or a string")
	}
	if _, err := n.Int64(); err != nil {
		return "", errors.New("must be an integer or a string")
	}
	return n.String(), nil
}

// bindProblem converts a binding failure to a problem response.
func bindProblem(err error) ProblemDetail {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = "is required"
		}
		return errValidation.WithDetail("request is missing required fields").WithExtension("fields", fields)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ProblemDetail{
			Type:   "/problems/payload-too-large",
			Title:  "Payload Too Large",
			Status: http.StatusRequestEntityTooLarge,
			Detail: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errValidation.WithDetail(fmt.Sprintf("field %s has the wrong type", typeErr.Field))
	}

	return errBadRequest.WithDetail("request body is not valid JSON")
}
