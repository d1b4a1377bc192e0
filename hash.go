package transcache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText computes the SHA-256 hash of the text exactly as given.
// No trimming or case folding is applied; translation is sensitive to both.
func HashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// CacheKey derives the cache key for a text and locale pair.
// Locale codes come from a fixed set without ':' so the key cannot collide
// across distinct (text, source, target) triples.
func CacheKey(text, sourceLang, targetLang string) string {
	return HashText(text) + ":" + sourceLang + ":" + targetLang
}
