package iglu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrSchemaNotFound reports that no configured registry carries the schema.
var ErrSchemaNotFound = errors.New("schema not found in registry")

// Resolver resolves a schema key to the raw JSON Schema document.
type Resolver interface {
	Resolve(ctx context.Context, key SchemaKey) (json.RawMessage, error)
}

const defaultResolveTimeout = 5 * time.Second

// HTTPResolver fetches schemas from one or more registry base URLs, in order.
type HTTPResolver struct {
	bases  []string
	client *http.Client
}

// NewHTTPResolver builds a resolver over the given registry base URLs.
func NewHTTPResolver(baseURLs []string, timeout time.Duration) (*HTTPResolver, error) {
	bases := make([]string, 0, len(baseURLs))
	for _, raw := range baseURLs {
		trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
		if trimmed == "" {
			continue
		}
		bases = append(bases, trimmed)
	}
	if len(bases) == 0 {
		return nil, errors.New("at least one registry url is required")
	}
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &HTTPResolver{
		bases:  bases,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Resolve tries each registry in order and returns the first schema found.
// All registries answering 404 yields ErrSchemaNotFound; a transport or
// server failure on every registry yields the last such error.
func (r *HTTPResolver) Resolve(ctx context.Context, key SchemaKey) (json.RawMessage, error) {
	var lastErr error
	for _, base := range r.bases {
		doc, err := r.fetch(ctx, base, key)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, ErrSchemaNotFound) {
			continue
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, key)
}

func (r *HTTPResolver) fetch(ctx context.Context, base string, key SchemaKey) (json.RawMessage, error) {
	url := base + "/schemas/" + key.Path()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching schema %s: %w", key, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", key, err)
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("registry returned invalid JSON for %s", key)
		}
		return json.RawMessage(body), nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, key)
	default:
		return nil, fmt.Errorf("registry %s answered %d for %s", base, resp.StatusCode, key)
	}
}

// CachedResolver memoizes successful lookups. Safe for concurrent readers;
// negative results are not cached so registry repopulation is picked up.
type CachedResolver struct {
	next Resolver

	mu    sync.RWMutex
	cache map[string]json.RawMessage
}

// NewCachedResolver wraps next with a read-through in-memory cache.
func NewCachedResolver(next Resolver) (*CachedResolver, error) {
	if next == nil {
		return nil, errors.New("wrapped resolver is required")
	}
	return &CachedResolver{
		next:  next,
		cache: make(map[string]json.RawMessage),
	}, nil
}

func (c *CachedResolver) Resolve(ctx context.Context, key SchemaKey) (json.RawMessage, error) {
	id := key.String()

	c.mu.RLock()
	if doc, ok := c.cache[id]; ok {
		c.mu.RUnlock()
		return doc, nil
	}
	c.mu.RUnlock()

	doc, err := c.next.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[id] = doc
	c.mu.Unlock()

	return doc, nil
}

// StaticResolver serves schemas from an in-memory map, keyed by iglu URI.
// Used by tests and embedded registries.
type StaticResolver map[string]json.RawMessage

func (s StaticResolver) Resolve(_ context.Context, key SchemaKey) (json.RawMessage, error) {
	doc, ok := s[key.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, key)
	}
	return doc, nil
}
