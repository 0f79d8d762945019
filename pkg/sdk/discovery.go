package sdk

import (
	"os"
	"strings"
)

// DefaultAddr is used when OBJECTS_API is not set.
const DefaultAddr = "http://localhost:3000"

// FromEnv creates a client for the API named by OBJECTS_API. Setting
// OBJECTS_INSECURE_TLS=true accepts self-signed certificates.
func FromEnv(opts ...Option) *Client {
	addr := os.Getenv("OBJECTS_API")
	if addr == "" {
		addr = DefaultAddr
	}
	if os.Getenv("OBJECTS_INSECURE_TLS") == "true" && strings.HasPrefix(addr, "https://") {
		opts = append([]Option{WithInsecureTLS()}, opts...)
	}
	return New(addr, opts...)
}
