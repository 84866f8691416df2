// Package cache stores provider responses by request key with a TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend persists cache entries. Get reports a miss for expired entries.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Prune(ctx context.Context) (int64, error)
}

// Key derives the cache key for a request: method, URL without query,
// query parameters merged with params and sorted by name, then the body.
func Key(method, rawURL string, params url.Values, body []byte) string {
	base := rawURL
	merged := url.Values{}
	if u, err := url.Parse(rawURL); err == nil {
		for k, vs := range u.Query() {
			merged[k] = append(merged[k], vs...)
		}
		u.RawQuery = ""
		u.Fragment = ""
		u.Host = strings.ToLower(u.Host)
		base = u.String()
	}
	for k, vs := range params {
		merged[k] = append(merged[k], vs...)
	}

	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{'\n'})
	h.Write([]byte(base))
	h.Write([]byte{'\n'})
	h.Write([]byte(merged.Encode()))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Loader reads through a Backend. Concurrent loads of the same key share
// one fetch, so a miss never produces duplicate outbound calls.
type Loader struct {
	backend Backend
	group   singleflight.Group
}

// NewLoader wraps backend. A nil backend disables caching.
func NewLoader(backend Backend) *Loader {
	return &Loader{backend: backend}
}

// Load returns the cached value for key, or calls fetch and stores its
// result for ttl. hit reports whether the value came from the backend.
// Fetch errors are returned and nothing is stored.
func (l *Loader) Load(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) ([]byte, error)) (value []byte, hit bool, err error) {
	if l == nil || l.backend == nil || ttl <= 0 {
		v, err := fetch(ctx)
		return v, false, err
	}

	if v, ok := l.get(ctx, key); ok {
		return v, true, nil
	}

	type result struct {
		value []byte
		hit   bool
	}
	r, err, _ := l.group.Do(key, func() (any, error) {
		// A caller that lost the race may arrive after the winner stored.
		if v, ok := l.get(ctx, key); ok {
			return result{v, true}, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.backend.Set(ctx, key, v, ttl); err != nil {
			zap.L().Warn("cache: store failed", zap.String("key", key), zap.Error(err))
		}
		return result{v, false}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := r.(result)
	return res.value, res.hit, nil
}

func (l *Loader) get(ctx context.Context, key string) ([]byte, bool) {
	v, ok, err := l.backend.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return v, ok
}

// Prune removes expired entries from the backend.
func (l *Loader) Prune(ctx context.Context) (int64, error) {
	if l == nil || l.backend == nil {
		return 0, nil
	}
	n, err := l.backend.Prune(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune")
	}
	return n, nil
}

type memEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Backend.
type Memory struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]memEntry), now: time.Now}
}

// Get implements Backend.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.m, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements Backend.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = memEntry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	return nil
}

// Prune implements Backend.
func (c *Memory) Prune(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var n int64
	for k, e := range c.m {
		if !now.Before(e.expires) {
			delete(c.m, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Entries is the slice of persistence a store must offer to back the cache.
type Entries interface {
	GetCachedResponse(ctx context.Context, key string) ([]byte, bool, error)
	SetCachedResponse(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	PruneCachedResponses(ctx context.Context, now time.Time) (int64, error)
}

// Store adapts a persistent store to Backend, so entries survive across runs.
type Store struct {
	entries Entries
	now     func() time.Time
}

// NewStore wraps a persistent store.
func NewStore(e Entries) *Store {
	return &Store{entries: e, now: time.Now}
}

// Get implements Backend.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.entries.GetCachedResponse(ctx, key)
}

// Set implements Backend.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.entries.SetCachedResponse(ctx, key, value, s.now().Add(ttl))
}

// Prune implements Backend.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	return s.entries.PruneCachedResponses(ctx, s.now())
}
