package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// NewRouter wires the object routes, the 404 fallback and the middleware
// chain (request id and logging, panic recovery, JSON body parsing).
func NewRouter(h *Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	// The collection path is served with and without a trailing slash.
	r.RedirectTrailingSlash = false
	r.Use(RequestLogger(logger), Recovery(), JSONBody())

	r.GET("/healthz", h.Health)

	objects := r.Group("/api/objects")
	{
		objects.POST("", h.Create)
		objects.POST("/", h.Create)
		objects.GET("", h.GetAll)
		objects.GET("/", h.GetAll)
		objects.GET("/:uid", h.GetOne)
		objects.PUT("/:uid", h.Update)
		objects.DELETE("/:uid", h.Delete)
	}

	r.NoRoute(NotFound)
	return r
}

// RequestLogger attaches a request scoped logger to the request context and
// logs one line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		l := logger.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		evt := l.Info()
		if status >= http.StatusInternalServerError {
			evt = l.Error()
		} else if status >= http.StatusBadRequest {
			evt = l.Warn()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("remote", c.ClientIP()).
			Msg("request")
	}
}

// Recovery intercepts panics from downstream handlers, logs details, and
// answers 500 with the error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(c.Request.Context()).Error().
					Interface("panic", rec).
					Str("method", c.Request.Method).
					Str("url", c.Request.URL.String()).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeError(c, http.StatusInternalServerError, MsgInternal)
			}
		}()
		c.Next()
	}
}
