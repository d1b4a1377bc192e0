package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZaguanLabs/transcache"
)

// MockEngine is a deterministic in-process engine for tests and local runs.
type MockEngine struct {
	mu           sync.Mutex
	translations map[string]string
	calls        int
	requests     []TranslateRequest

	// FailWhen, if set, makes Translate fail for requests it returns true for.
	FailWhen func(req TranslateRequest) bool
	// PingErr is returned by Ping.
	PingErr error
}

// NewMockEngine creates a mock engine with a small built-in dictionary.
// Unknown texts are returned as "[target] text".
func NewMockEngine() *MockEngine {
	return &MockEngine{
		translations: map[string]string{
			"es\x00Hello world": "Hola mundo",
			"es\x00Welcome":     "Bienvenido",
			"fr\x00Hello world": "Bonjour le monde",
			"fr\x00Welcome":     "Bienvenue",
			"de\x00Hello world": "Hallo Welt",
			"de\x00Welcome":     "Willkommen",
		},
	}
}

// Add registers a translation of text into target.
func (m *MockEngine) Add(target, text, translation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translations[target+"\x00"+text] = translation
}

// Translate returns dictionary translations.
func (m *MockEngine) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	fail := m.FailWhen
	m.mu.Unlock()

	if fail != nil && fail(req) {
		return nil, &transcache.ProviderError{Message: "mock engine failure"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		if translation, ok := m.translations[req.TargetLang+"\x00"+text]; ok {
			results[i] = translation
		} else {
			results[i] = fmt.Sprintf("[%s] %s", req.TargetLang, text)
		}
	}

	return results, nil
}

// Ping returns PingErr.
func (m *MockEngine) Ping(context.Context) error {
	return m.PingErr
}

// CallCount returns the number of Translate calls.
func (m *MockEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of all requests received.
func (m *MockEngine) Requests() []TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranslateRequest(nil), m.requests...)
}

// Reset resets the call count and recorded requests.
func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.requests = nil
}

// Verify MockEngine implements Engine
var _ Engine = (*MockEngine)(nil)
