package assetcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/observability"
	"github.com/ImBetterThanYesterday/elder-voice-link/internal/protocol"
)

// Fetcher loads an asset from its authoritative source. It returns the
// asset bytes and content type.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, string, error)
}

type entry struct {
	data        []byte
	contentType string
}

// Worker keeps a named, versioned cache of a fixed asset manifest and
// serves assets network-first: the source is always tried, and the cached
// copy covers source failures silently. Bumping the version string and
// activating discards every older version at once.
type Worker struct {
	version  string
	manifest []string
	fetch    Fetcher
	metrics  *observability.Metrics

	mu     sync.RWMutex
	caches map[string]map[string]entry
	subs   map[chan protocol.CacheCleared]struct{}
}

func New(version string, manifest []string, fetch Fetcher, metrics *observability.Metrics) *Worker {
	return &Worker{
		version:  version,
		manifest: manifest,
		fetch:    fetch,
		metrics:  metrics,
		caches:   map[string]map[string]entry{},
		subs:     map[chan protocol.CacheCleared]struct{}{},
	}
}

func (w *Worker) Version() string { return w.version }

// Install precaches the whole manifest into the current version. A single
// missing asset fails the install; a partially populated cache would serve
// a broken page offline.
func (w *Worker) Install(ctx context.Context) error {
	fresh := make(map[string]entry, len(w.manifest))
	for _, path := range w.manifest {
		data, contentType, err := w.fetch.Fetch(ctx, path)
		if err != nil {
			return fmt.Errorf("precache %s: %w", path, err)
		}
		fresh[path] = entry{data: data, contentType: contentType}
	}

	w.mu.Lock()
	w.caches[w.version] = fresh
	w.mu.Unlock()

	w.event("install")
	return nil
}

// Activate deletes every cache version other than the current one and
// returns the purged version names.
func (w *Worker) Activate() []string {
	w.mu.Lock()
	var purged []string
	for version := range w.caches {
		if version != w.version {
			delete(w.caches, version)
			purged = append(purged, version)
		}
	}
	w.mu.Unlock()

	for range purged {
		w.event("activate_purge")
	}
	return purged
}

// Serve resolves one asset network-first. A successful fetch refreshes the
// cached copy; a failed fetch falls back to the cache without surfacing
// the error. Only when both miss does Serve fail.
func (w *Worker) Serve(ctx context.Context, path string) ([]byte, string, error) {
	data, contentType, err := w.fetch.Fetch(ctx, path)
	if err == nil {
		w.mu.Lock()
		if cache, ok := w.caches[w.version]; ok {
			cache[path] = entry{data: data, contentType: contentType}
		}
		w.mu.Unlock()
		w.event("network")
		return data, contentType, nil
	}

	w.mu.RLock()
	cached, ok := w.caches[w.version][path]
	w.mu.RUnlock()
	if ok {
		w.event("fallback")
		return cached.data, cached.contentType, nil
	}
	return nil, "", fmt.Errorf("asset %s unavailable: %w", path, err)
}

// Clear empties the current version and notifies every subscriber. It
// satisfies the page's clear-cache control round trip.
func (w *Worker) Clear(ctx context.Context) error {
	w.mu.Lock()
	w.caches[w.version] = map[string]entry{}
	subs := make([]chan protocol.CacheCleared, 0, len(w.subs))
	for ch := range w.subs {
		subs = append(subs, ch)
	}
	w.mu.Unlock()

	ack := protocol.CacheCleared{Type: protocol.TypeCacheCleared, Action: "CACHE_CLEARED"}
	for _, ch := range subs {
		select {
		case ch <- ack:
		default:
			// A stalled subscriber must not block the clear.
		}
	}

	w.event("cleared")
	return nil
}

// Subscribe registers for clear acknowledgements, one channel per open
// page connection.
func (w *Worker) Subscribe() chan protocol.CacheCleared {
	ch := make(chan protocol.CacheCleared, 1)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()
	return ch
}

func (w *Worker) Unsubscribe(ch chan protocol.CacheCleared) {
	w.mu.Lock()
	delete(w.subs, ch)
	w.mu.Unlock()
}

// Cached reports whether a path is present in the current version. Test
// and readiness helper.
func (w *Worker) Cached(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.caches[w.version][path]
	return ok
}

func (w *Worker) event(name string) {
	if w.metrics != nil {
		w.metrics.CacheEvents.WithLabelValues(name).Inc()
	}
}
