package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZaguanLabs/transcache"
	"github.com/ZaguanLabs/transcache/cache"
	"github.com/ZaguanLabs/transcache/engine"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubTranslator returns canned results and records the last request.
type stubTranslator struct {
	resp   *transcache.Response
	err    error
	status transcache.Status
	last   *transcache.Request
}

func (s *stubTranslator) Handle(_ context.Context, req transcache.Request) (*transcache.Response, error) {
	s.last = &req
	return s.resp, s.err
}

func (s *stubTranslator) Status(context.Context) transcache.Status {
	return s.status
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func newPipelineRouter() (*gin.Engine, *engine.MockEngine) {
	e := engine.NewMockEngine()
	svc := transcache.NewService(e,
		transcache.WithCache(cache.NewInMemoryCache()),
		transcache.WithModelName("facebook/nllb-200-distilled-600M"),
	)
	return New(svc, Options{}), e
}

func TestTranslate_EndToEnd(t *testing.T) {
	r, e := newPipelineRouter()
	body := `{"texts":["Hello world","Welcome"],"value_ids":[1,2],"source_locale":"en","target_locale":"es"}`

	w := do(t, r, http.MethodPost, "/translate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp translateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"1": "Hola mundo", "2": "Bienvenido"}, resp.Translations)
	assert.Equal(t, 0, resp.CachedCount)
	assert.Equal(t, 2, resp.TranslatedCount)

	w = do(t, r, http.MethodPost, "/translate", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.CachedCount)
	assert.Equal(t, 0, resp.TranslatedCount)
	assert.Equal(t, 1, e.CallCount())
}

func TestTranslate_StringIDs(t *testing.T) {
	stub := &stubTranslator{resp: &transcache.Response{Translations: map[string]string{}}}
	r := New(stub, Options{})

	w := do(t, r, http.MethodPost, "/translate",
		`{"texts":["a","b"],"value_ids":["title", 42],"source_locale":"en","target_locale":"de"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, stub.last)
	assert.Equal(t, []transcache.Item{{ID: "title", Text: "a"}, {ID: "42", Text: "b"}}, stub.last.Items)
	assert.Equal(t, transcache.LocalePair{Source: "en", Target: "de"}, stub.last.Locales)
}

func TestTranslate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unsupported target", `{"texts":["a"],"value_ids":[1],"source_locale":"en","target_locale":"xx"}`, "target_locale"},
		{"length mismatch", `{"texts":["a","b"],"value_ids":[1],"source_locale":"en","target_locale":"es"}`, "value_ids"},
		{"duplicate ids", `{"texts":["a","b"],"value_ids":[1,"1"],"source_locale":"en","target_locale":"es"}`, "value_ids"},
		{"fractional id", `{"texts":["a"],"value_ids":[1.5],"source_locale":"en","target_locale":"es"}`, "value_ids"},
		{"object id", `{"texts":["a"],"value_ids":[{}],"source_locale":"en","target_locale":"es"}`, "value_ids"},
		{"empty texts", `{"texts":[],"value_ids":[],"source_locale":"en","target_locale":"es"}`, "texts"},
		{"empty text", `{"texts":[""],"value_ids":[1],"source_locale":"en","target_locale":"es"}`, "texts"},
		{"missing locale", `{"texts":["a"],"value_ids":[1],"target_locale":"es"}`, "source_locale"},
		{"missing texts", `{"value_ids":[1],"source_locale":"en","target_locale":"es"}`, "texts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, e := newPipelineRouter()

			w := do(t, r, http.MethodPost, "/translate", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			p := decodeProblem(t, w)
			assert.Equal(t, TypeValidation, p.Type)
			fields, ok := p.Extensions["fields"].(map[string]any)
			require.True(t, ok, "expected field details, got %v", p.Extensions)
			assert.Contains(t, fields, tt.field)
			assert.Zero(t, e.CallCount())
		})
	}
}

func TestTranslate_MalformedJSON(t *testing.T) {
	r, _ := newPipelineRouter()

	w := do(t, r, http.MethodPost, "/translate", `{"texts": [`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, TypeBadRequest, decodeProblem(t, w).Type)

	w = do(t, r, http.MethodPost, "/translate", `{"texts":[1],"value_ids":[1],"source_locale":"en","target_locale":"es"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, TypeValidation, decodeProblem(t, w).Type)
}

func TestTranslate_BodyTooLarge(t *testing.T) {
	stub := &stubTranslator{}
	r := New(stub, Options{MaxBodyBytes: 64})

	body := `{"texts":["` + strings.Repeat("x", 200) + `"],"value_ids":[1],"source_locale":"en","target_locale":"es"}`
	w := do(t, r, http.MethodPost, "/translate", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Nil(t, stub.last)
}

func TestTranslate_EngineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{
			"partial failure",
			&transcache.PartialTranslationError{Batches: 2, Failed: []*transcache.BatchError{{Index: 1, Offset: 16, Size: 4, Cause: errors.New("boom")}}},
			http.StatusBadGateway,
			TypeTranslationFailed,
		},
		{
			"engine unavailable",
			&transcache.EngineUnavailableError{Cause: errors.New("connection refused")},
			http.StatusServiceUnavailable,
			TypeEngineUnavailable,
		},
		{
			"unexpected",
			errors.New("secret internal detail"),
			http.StatusInternalServerError,
			TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&stubTranslator{err: tt.err}, Options{})

			w := do(t, r, http.MethodPost, "/translate",
				`{"texts":["a"],"value_ids":[1],"source_locale":"en","target_locale":"es"}`)
			require.Equal(t, tt.status, w.Code)

			p := decodeProblem(t, w)
			assert.Equal(t, tt.typ, p.Type)
			assert.NotContains(t, w.Body.String(), "secret internal detail")
			assert.NotEmpty(t, p.Extensions["request_id"])
		})
	}
}

func TestTranslate_FailedBatchThroughPipeline(t *testing.T) {
	e := engine.NewMockEngine()
	e.FailWhen = func(req transcache.TranslateRequest) bool { return true }
	r := New(transcache.NewService(e), Options{})

	w := do(t, r, http.MethodPost, "/translate",
		`{"texts":["a"],"value_ids":[1],"source_locale":"en","target_locale":"es"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	p := decodeProblem(t, w)
	batches, ok := p.Extensions["failed_batches"].([]any)
	require.True(t, ok)
	assert.Len(t, batches, 1)
}

func TestRequestID(t *testing.T) {
	stub := &stubTranslator{status: transcache.Status{Healthy: true}}
	r := New(stub, Options{})

	w := do(t, r, http.MethodGet, "/health", "")
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "caller-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(HeaderRequestID))
}

func TestRequestID_ReachesPipeline(t *testing.T) {
	var seen string
	stub := &ctxTranslator{fn: func(ctx context.Context) { seen = transcache.RequestIDFromContext(ctx) }}
	r := New(stub, Options{})

	req := httptest.NewRequest(http.MethodPost, "/translate",
		strings.NewReader(`{"texts":["a"],"value_ids":[1],"source_locale":"en","target_locale":"es"}`))
	req.Header.Set(HeaderRequestID, "trace-me")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "trace-me", seen)
}

type ctxTranslator struct {
	fn func(ctx context.Context)
}

func (c *ctxTranslator) Handle(ctx context.Context, _ transcache.Request) (*transcache.Response, error) {
	c.fn(ctx)
	return &transcache.Response{Translations: map[string]string{}}, nil
}

func (c *ctxTranslator) Status(context.Context) transcache.Status { return transcache.Status{} }

func TestHealth(t *testing.T) {
	r, _ := newPipelineRouter()

	w := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "translation-service", resp.Service)
	assert.True(t, resp.Model.Loaded)
	require.NotNil(t, resp.Model.Name)
	assert.Equal(t, "facebook/nllb-200-distilled-600M", *resp.Model.Name)
	assert.Equal(t, "connected", resp.Redis)
	assert.Equal(t, transcache.SupportedLanguages, resp.SupportedLanguages)
}

func TestHealth_Degraded(t *testing.T) {
	e := engine.NewMockEngine()
	e.PingErr = errors.New("model not loaded")
	r := New(transcache.NewService(e, transcache.WithModelName("nllb")), Options{})

	w := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "degraded", raw["status"])
	assert.Equal(t, "not initialized", raw["redis"])
	model := raw["model"].(map[string]any)
	assert.Equal(t, false, model["loaded"])
	assert.Nil(t, model["name"])
}

func TestNoRoute(t *testing.T) {
	r, _ := newPipelineRouter()

	w := do(t, r, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/nope", decodeProblem(t, w).Instance)
}

func TestParseValueID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`7`, "7", false},
		{`"7"`, "7", false},
		{`"héllo"`, "héllo", false},
		{`-3`, "-3", false},
		{`12345678901234567`, "12345678901234567", false},
		{`1.5`, "", true},
		{`true`, "", true},
		{`null`, "", true},
		{`[1]`, "", true},
	}

	for _, tt := range tests {
		got, err := parseValueID(json.RawMessage(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}
