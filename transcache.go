// Package transcache provides a caching, batching front for a text
// translation engine.
//
// A Service receives a request of identified texts plus a locale pair, serves
// whatever it can from a key-value cache, sends only the remaining texts to the
// engine in bounded batches, writes new results back with a TTL and returns a
// mapping from every input identifier to its translation.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/transcache"
//	    "github.com/ZaguanLabs/transcache/cache"
//	    "github.com/ZaguanLabs/transcache/engine"
//	)
//
//	func main() {
//	    e := engine.NewOpenAIEngine(engine.OpenAIConfig{
//	        BaseURL: "http://localhost:8001/v1",
//	        Model:   "facebook/nllb-200-distilled-600M",
//	    })
//
//	    svc := transcache.NewService(e,
//	        transcache.WithCache(cache.NewInMemoryCache()),
//	        transcache.WithCacheTTL(30*24*time.Hour),
//	    )
//
//	    resp, err := svc.Handle(context.Background(), transcache.Request{
//	        Items:   []transcache.Item{{ID: "1", Text: "Hello world"}},
//	        Locales: transcache.LocalePair{Source: "en", Target: "es"},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(resp.Translations["1"]) // Hola mundo
//	}
package transcache
