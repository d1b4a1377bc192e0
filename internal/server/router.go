// Package server exposes the translation service over HTTP.
package server

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/ZaguanLabs/transcache"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes caps the size of a /translate request body.
const DefaultMaxBodyBytes = 4 << 20

// Translator is the pipeline the HTTP layer drives.
type Translator interface {
	Handle(ctx context.Context, req transcache.Request) (*transcache.Response, error)
	Status(ctx context.Context) transcache.Status
}

// Options configures the router.
type Options struct {
	ServiceName  string
	Logger       *zap.Logger
	MaxBodyBytes int64
}

var registerTagNames sync.Once

// New creates a router with all routes configured.
func New(svc Translator, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = transcache.Name
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Report validation failures by JSON field name.
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})

	r := gin.New()
	r.Use(requestID())
	r.Use(accessLog(opts.Logger))
	r.Use(recovery(opts.Logger))
	r.Use(otelgin.Middleware(opts.ServiceName))

	h := &handler{svc: svc, logger: opts.Logger, maxBodyBytes: opts.MaxBodyBytes}

	r.GET("/health", h.health)
	r.POST("/translate", h.translate)

	r.NoRoute(func(c *gin.Context) {
		respond(c, ProblemDetail{
			Type:   "/problems/not-found",
			Title:  "Resource Not Found",
			Status: http.StatusNotFound,
		})
	})

	return r
}
