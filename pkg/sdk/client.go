// Package sdk provides the client-side library for the Celerix Objects HTTP API.
package sdk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const objectsPath = "/api/objects"

// Client talks to the API over HTTP. It implements Objects.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithInsecureTLS skips certificate verification, for servers using the
// generated self-signed certificate.
func WithInsecureTLS() Option {
	return func(c *resty.Client) { c.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) }
}

// WithRetries sets how often transport failures are retried.
func WithRetries(n int) Option {
	return func(c *resty.Client) { c.SetRetryCount(n) }
}

// New creates a client for the API at baseURL, e.g. http://localhost:3000.
func New(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(_ *resty.Response, err error) bool {
			// Only transport failures; answers from the API are final.
			return err != nil
		})
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

func objectPath(uid string) string {
	return objectsPath + "/" + url.PathEscape(uid)
}

func (c *Client) do(ctx context.Context, method, p string, body any, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, p)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Verb: method, URL: p, Message: resp.Status()}
		_ = json.Unmarshal(resp.Body(), apiErr)
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, p, err)
		}
	}
	return nil
}

// Create stores obj and returns it with its server assigned uid.
func (c *Client) Create(ctx context.Context, obj map[string]any) (Object, error) {
	if obj == nil {
		obj = map[string]any{}
	}
	var out Object
	if err := c.do(ctx, http.MethodPost, objectsPath, obj, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one object.
func (c *Client) Get(ctx context.Context, uid string) (Object, error) {
	var out Object
	if err := c.do(ctx, http.MethodGet, objectPath(uid), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the uid of every stored object.
func (c *Client) List(ctx context.Context) ([]string, error) {
	urls, err := c.Locators(ctx)
	if err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(urls))
	for _, u := range urls {
		uids = append(uids, path.Base(u))
	}
	return uids, nil
}

// Locators returns the URL of every stored object as reported by the server.
func (c *Client) Locators(ctx context.Context) ([]string, error) {
	var entries []struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, objectsPath, nil, &entries); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	return urls, nil
}

// Replace overwrites every field of the object identified by uid with obj.
// The uid field is filled in when obj does not carry one.
func (c *Client) Replace(ctx context.Context, uid string, obj map[string]any) (Object, error) {
	body := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		body[k] = v
	}
	if _, ok := body["uid"]; !ok {
		body["uid"] = uid
	}
	var out Object
	if err := c.do(ctx, http.MethodPut, objectPath(uid), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an object. Deleting an absent object succeeds.
func (c *Client) Delete(ctx context.Context, uid string) error {
	return c.do(ctx, http.MethodDelete, objectPath(uid), nil, nil)
}

// Ping checks that the service can reach its store.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}
