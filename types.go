package transcache

import "time"

const (
	// MaxBatchSize is the hard cap on texts sent to the engine in one call.
	MaxBatchSize = 16

	// DefaultCacheTTL is how long a written translation stays in the store.
	DefaultCacheTTL = 30 * 24 * time.Hour

	// DefaultEngineTimeout bounds a single engine call.
	DefaultEngineTimeout = 30 * time.Second
)

// Item is one translatable unit of a request.
type Item struct {
	ID   string // Caller-supplied identifier, unique within a request
	Text string // Source text, sent to the engine verbatim
}

// LocalePair is the source and target language of a request.
type LocalePair struct {
	Source string // Short locale code (e.g., "en")
	Target string // Short locale code (e.g., "es")
}

// Request is a batch of items to translate between one locale pair.
type Request struct {
	Items   []Item
	Locales LocalePair
}

// Response is the result of a handled Request.
type Response struct {
	Translations    map[string]string // Item ID -> translated text, one entry per input item
	CachedCount     int               // Items resolved from the cache
	TranslatedCount int               // Items resolved without the cache
}

// Translation pairs an item identifier with its translated text.
type Translation struct {
	ID   string
	Text string
}

// Status is a point-in-time health summary.
type Status struct {
	Healthy            bool
	Service            string
	Version            string
	ModelName          string
	ModelLoaded        bool
	Cache              CacheState
	SupportedLanguages []string
}

// CacheState describes the reachability of the cache store.
type CacheState string

const (
	CacheConnected      CacheState = "connected"
	CacheDisconnected   CacheState = "disconnected"
	CacheNotInitialized CacheState = "not initialized"
)
