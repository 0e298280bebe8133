package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/sitedeck/internal/observability"
)

// Cache namespaces. A mutation invalidates every key of its namespace.
const (
	CacheNamespaceWebsites   = "websites"
	CacheNamespaceCategories = "categories"
	CacheNamespaceTags       = "tags"
	CacheNamespaceSettings   = "settings"
)

// ListCacheStore holds serialized list responses grouped by namespace.
type ListCacheStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	InvalidateNamespace(ctx context.Context, namespace string) error
}

type NoopListCacheStore struct{}

func NewNoopListCacheStore() *NoopListCacheStore { return &NoopListCacheStore{} }

func (NoopListCacheStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopListCacheStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return nil
}

func (NoopListCacheStore) InvalidateNamespace(context.Context, string) error { return nil }

type cachedPayload struct {
	data      []byte
	expiresAt time.Time
}

type MemoryListCacheStore struct {
	now func() time.Time

	mu         sync.RWMutex
	namespaces map[string]map[string]cachedPayload
}

func NewMemoryListCacheStore() *MemoryListCacheStore {
	return &MemoryListCacheStore{
		now:        time.Now,
		namespaces: make(map[string]map[string]cachedPayload),
	}
}

func (s *MemoryListCacheStore) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.namespaces[namespace][key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.namespaces[namespace], key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.data...), true, nil
}

func (s *MemoryListCacheStore) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]cachedPayload)
		s.namespaces[namespace] = ns
	}
	ns[key] = cachedPayload{data: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryListCacheStore) InvalidateNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	delete(s.namespaces, namespace)
	s.mu.Unlock()
	return nil
}

// ListCache is a read-through JSON cache in front of list queries. Cache
// failures are logged and fall through to the loader.
type ListCache struct {
	store  ListCacheStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewListCache(store ListCacheStore, ttl time.Duration, logger *slog.Logger) *ListCache {
	if store == nil {
		store = NewNoopListCacheStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListCache{store: store, ttl: ttl, logger: logger}
}

func (c *ListCache) Invalidate(ctx context.Context, namespaces ...string) {
	if c == nil {
		return
	}
	for _, ns := range namespaces {
		if err := c.store.InvalidateNamespace(ctx, ns); err != nil {
			c.logger.Warn("list cache invalidate failed", "namespace", ns, "error", err)
			observability.RecordListCacheEvent(ctx, ns, "invalidate_error")
			continue
		}
		observability.RecordListCacheEvent(ctx, ns, "invalidate")
	}
}

// cachedList returns the cached value for (namespace, key) or calls load and
// stores its result.
func cachedList[T any](ctx context.Context, c *ListCache, namespace, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.ttl <= 0 {
		return load(ctx)
	}
	raw, ok, err := c.store.Get(ctx, namespace, key)
	if err != nil {
		c.logger.Warn("list cache read failed", "namespace", namespace, "error", err)
		observability.RecordListCacheEvent(ctx, namespace, "error")
	} else if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			observability.RecordListCacheEvent(ctx, namespace, "hit")
			return out, nil
		}
		observability.RecordListCacheEvent(ctx, namespace, "decode_error")
	} else {
		observability.RecordListCacheEvent(ctx, namespace, "miss")
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if payload, err := json.Marshal(value); err == nil {
		if err := c.store.Set(ctx, namespace, key, payload, c.ttl); err != nil {
			c.logger.Warn("list cache write failed", "namespace", namespace, "error", err)
		}
	}
	return value, nil
}
