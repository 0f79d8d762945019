package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/celerix-dev/celerix-objects/internal/engine"
	"github.com/gin-gonic/gin"
)

const bodyKey = "objects.body"

// ErrorResponse is the envelope of every 4xx and 5xx response.
type ErrorResponse struct {
	Verb    string `json:"verb"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// NewErrorResponse builds the envelope for r.
func NewErrorResponse(r *http.Request, message string) ErrorResponse {
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	return ErrorResponse{
		Verb:    r.Method,
		URL:     origin(r) + uri,
		Message: message,
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(c.Request, message))
}

// origin returns scheme://host of the request as received.
func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// parseBody decodes a request body. An empty body is an empty object; any
// other payload must be a single JSON object.
func parseBody(raw []byte) (engine.Resource, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return engine.Resource{}, true
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return nil, false
	}
	return engine.Resource(body), true
}

// JSONBody reads and decodes the body of every request before routing and
// rejects malformed payloads with the error envelope.
func JSONBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw []byte
		if c.Request.Body != nil {
			var err error
			if raw, err = io.ReadAll(c.Request.Body); err != nil {
				writeError(c, http.StatusBadRequest, MsgMalformedJSON)
				return
			}
		}
		body, ok := parseBody(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, MsgMalformedJSON)
			return
		}
		c.Set(bodyKey, body)
		c.Next()
	}
}

func requestBody(c *gin.Context) engine.Resource {
	if v, ok := c.Get(bodyKey); ok {
		if body, ok := v.(engine.Resource); ok {
			return body
		}
	}
	return engine.Resource{}
}
