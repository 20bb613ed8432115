// Package cache implements the content-addressed blob cache shared by
// every probe adapter that hits an external enrichment source: CT logs,
// the vulnerability DB, code search. Keyed by (namespace, canonical-JSON
// of inputs), single-flight per key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/threatveil/core/pkg/signal"
)

// Store is the persistence contract a Cache reads and writes through.
// pkg/store/memstore implements it for tests and default operation; an
// operator wanting durability beyond process lifetime can back it with
// pkg/storage.BlobStore-style persistence.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, expiresAt time.Time, found bool, err error)
	Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error
}

// Cache wraps a Store with single-flight de-duplication so concurrent
// requests for the same unexpired key share one fetch.
type Cache struct {
	store Store
	group singleflight.Group
	now   func() time.Time
}

func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// BackedBy adapts any store.CacheStore-shaped backend (pkg/store.CacheStore,
// satisfied by both memstore and pgstore) to the Store interface and wraps
// it in a Cache, so callers never need a package-specific adapter type.
func BackedBy(backend CacheStoreBackend) *Cache {
	return New(storeAdapter{backend})
}

// CacheStoreBackend mirrors pkg/store.CacheStore's two methods without
// importing pkg/store, keeping this package a dependency-free leaf.
type CacheStoreBackend interface {
	CacheGet(ctx context.Context, key string) (value []byte, expiresAt time.Time, found bool, err error)
	CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error
}

type storeAdapter struct {
	backend CacheStoreBackend
}

func (a storeAdapter) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	return a.backend.CacheGet(ctx, key)
}

func (a storeAdapter) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	return a.backend.CachePut(ctx, key, value, expiresAt)
}

// Key computes the SHA-256 content address of the canonical JSON of
// payload, truncated to the first 24 hex characters, and prefixes it with
// namespace: "<namespace>:<digest>".
func Key(namespace string, payload interface{}) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%s", namespace, hex.EncodeToString(sum[:])[:24]), nil
}

// canonicalJSON sorts map keys so identical inputs always marshal the same,
// mirroring the original's json.dumps(payload, sort_keys=True).
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortStrings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(t[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf := []byte{'['}
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			eb, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			buf = append(buf, eb...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(t)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Fetcher produces a fresh value on a cache miss.
type Fetcher func(ctx context.Context) (interface{}, error)

// GetOrFetch returns the unexpired cached value for key, else invokes
// fetcher, stores the result with ttl, and returns it. dest must be a
// pointer; on a hit the stored JSON is unmarshaled into it.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher, dest interface{}) error {
	raw, err, _ := c.group.Do(key, func() (interface{}, error) {
		if value, expiresAt, found, err := c.store.Get(ctx, key); err == nil && found && expiresAt.After(c.now()) {
			slog.Debug("cache hit", "key", key)
			return value, nil
		} else if err != nil {
			slog.Warn("cache read failed, falling through to fetch", "key", key, "error", err)
		}

		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("cache: encode fetched value: %w", err)
		}
		if err := c.store.Put(ctx, key, encoded, c.now().Add(ttl)); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// SignalBundle is the (metadata, signals) pair cached_signal_bundle
// specializes GetOrFetch for.
type SignalBundle struct {
	Metadata map[string]interface{} `json:"metadata"`
	Signals  []signal.Signal        `json:"signals"`
}

// BundleFetcher produces a fresh SignalBundle on a cache miss.
type BundleFetcher func(ctx context.Context) (SignalBundle, error)

// CachedSignalBundle is GetOrFetch specialized to a (metadata, []Signal)
// pair, reconstructing Signals from their stored evidence envelope on a
// cache hit.
func (c *Cache) CachedSignalBundle(ctx context.Context, namespace string, payload interface{}, ttl time.Duration, fetch BundleFetcher) (SignalBundle, error) {
	key, err := Key(namespace, payload)
	if err != nil {
		return SignalBundle{}, err
	}
	var bundle SignalBundle
	err = c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	}, &bundle)
	return bundle, err
}
