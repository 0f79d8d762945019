package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Object is a stored document as returned by the API; it always carries "uid".
type Object map[string]any

// UID returns the public identifier of the object.
func (o Object) UID() string {
	uid, _ := o["uid"].(string)
	return uid
}

// --- Functional Interfaces (Interface Segregation) ---

// ObjectReader defines the read operations of the API.
type ObjectReader interface {
	Get(ctx context.Context, uid string) (Object, error)
	List(ctx context.Context) ([]string, error)
}

// ObjectWriter defines the write operations of the API.
type ObjectWriter interface {
	Create(ctx context.Context, obj map[string]any) (Object, error)
	Replace(ctx context.Context, uid string, obj map[string]any) (Object, error)
	Delete(ctx context.Context, uid string) error
}

// Objects is the complete client contract.
type Objects interface {
	ObjectReader
	ObjectWriter
	Ping(ctx context.Context) error
}

// APIError is a non 2xx answer decoded from the error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Verb    string `json:"verb"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Verb, e.URL, e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// GetAs fetches an object and decodes it into T.
func GetAs[T any](ctx context.Context, s ObjectReader, uid string) (T, error) {
	var target T
	obj, err := s.Get(ctx, uid)
	if err != nil {
		return target, err
	}
	bytes, err := json.Marshal(obj)
	if err != nil {
		return target, err
	}
	err = json.Unmarshal(bytes, &target)
	return target, err
}

// CreateFrom encodes val as a JSON object and creates it.
func CreateFrom[T any](ctx context.Context, s ObjectWriter, val T) (Object, error) {
	bytes, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(bytes, &obj); err != nil {
		return nil, fmt.Errorf("value does not encode to a JSON object: %w", err)
	}
	return s.Create(ctx, obj)
}
