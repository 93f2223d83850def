package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/metrics"
)

// IconPathPrefix is where icons cached through CACHE_ICONS are served
const IconPathPrefix = "/offline/icons/"

// DefaultMaxEntries bounds the cache when no limit is configured
const DefaultMaxEntries = 256

// ErrWorkerStopped is returned once the worker goroutine has exited
var ErrWorkerStopped = errors.New("offline worker stopped")

// Entry is one cached response
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// SyncHandler runs a background sync. It executes on the worker goroutine
// and must not call back into the Worker.
type SyncHandler func(ctx context.Context, payload any) error

// state is owned by the worker goroutine and never touched elsewhere
type state struct {
	maxEntries  int
	entries     map[string]*Entry
	order       []string
	syncs       map[string]SyncHandler
	subscribers map[int]chan Message
	nextSubID   int
}

// Worker owns the offline cache. All access goes through its request channel.
type Worker struct {
	requests chan func(ctx context.Context, s *state)
	stopped  chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// NewWorker starts the worker goroutine. It runs until ctx is done or Stop is called.
func NewWorker(ctx context.Context, maxEntries int) *Worker {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		requests: make(chan func(ctx context.Context, s *state)),
		stopped:  make(chan struct{}),
		cancel:   cancel,
	}
	go w.run(ctx, &state{
		maxEntries:  maxEntries,
		entries:     make(map[string]*Entry),
		syncs:       make(map[string]SyncHandler),
		subscribers: make(map[int]chan Message),
	})
	return w
}

func (w *Worker) run(ctx context.Context, s *state) {
	defer close(w.stopped)
	slog.Debug("OfflineWorker: started", "max_entries", s.maxEntries)
	for {
		select {
		case <-ctx.Done():
			for id, ch := range s.subscribers {
				close(ch)
				delete(s.subscribers, id)
			}
			slog.Debug("OfflineWorker: stopped")
			return
		case req := <-w.requests:
			req(ctx, s)
		}
	}
}

// Stop ends the worker goroutine and waits for it to exit
func (w *Worker) Stop() {
	w.stopOnce.Do(w.cancel)
	<-w.stopped
}

// do runs fn on the worker goroutine and waits for it to finish
func (w *Worker) do(fn func(ctx context.Context, s *state)) error {
	done := make(chan struct{})
	req := func(ctx context.Context, s *state) {
		defer close(done)
		fn(ctx, s)
	}
	select {
	case w.requests <- req:
	case <-w.stopped:
		return ErrWorkerStopped
	}
	<-done
	return nil
}

// Get returns a copy of the cached entry for key
func (w *Worker) Get(key string) (*Entry, bool) {
	var entry *Entry
	err := w.do(func(_ context.Context, s *state) {
		if e, ok := s.entries[key]; ok {
			entry = e.clone()
		}
	})
	return entry, err == nil && entry != nil
}

// Put stores entry under key, evicting the oldest entries beyond the limit
func (w *Worker) Put(key string, entry *Entry) error {
	stored := entry.clone()
	if stored.StoredAt.IsZero() {
		stored.StoredAt = time.Now()
	}
	return w.do(func(_ context.Context, s *state) {
		s.put(key, stored)
	})
}

// Clear drops every entry and returns how many were removed
func (w *Worker) Clear() (int, error) {
	var removed int
	err := w.do(func(_ context.Context, s *state) {
		removed = len(s.entries)
		s.entries = make(map[string]*Entry)
		s.order = nil
		metrics.OfflineCacheEntries.Set(0)
	})
	return removed, err
}

// Size returns the number of cached entries
func (w *Worker) Size() (int, error) {
	var size int
	err := w.do(func(_ context.Context, s *state) {
		size = len(s.entries)
	})
	return size, err
}

// CacheIcons stores icons so they can be served from IconPathPrefix
func (w *Worker) CacheIcons(list []CachedIcon) error {
	type decoded struct {
		key   string
		entry *Entry
	}
	prepared := make([]decoded, 0, len(list))
	for _, icon := range list {
		name := path.Base(icon.Filename)
		if name == "." || name == "/" || name == "" {
			return fmt.Errorf("invalid icon filename %q", icon.Filename)
		}
		mimeType, data, err := icons.DecodeDataURL(icon.EncodedImage)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		header := http.Header{}
		header.Set("Content-Type", mimeType)
		prepared = append(prepared, decoded{
			key:   cacheKey(http.MethodGet, IconPathPrefix+name, ""),
			entry: &Entry{Status: http.StatusOK, Header: header, Body: data, StoredAt: time.Now()},
		})
	}

	return w.do(func(_ context.Context, s *state) {
		for _, p := range prepared {
			s.put(p.key, p.entry)
		}
	})
}

// RegisterSync installs the handler for a background sync tag
func (w *Worker) RegisterSync(tag string, handler SyncHandler) error {
	return w.do(func(_ context.Context, s *state) {
		s.syncs[tag] = handler
	})
}

// RequestSync queues the sync for tag and returns immediately.
// The handler runs on the worker goroutine; SYNC_COMPLETE is broadcast when it succeeds.
func (w *Worker) RequestSync(tag string, payload any) error {
	req := func(ctx context.Context, s *state) {
		handler, ok := s.syncs[tag]
		if !ok {
			slog.Warn("OfflineWorker: no handler for sync tag", "tag", tag)
			return
		}
		if err := handler(ctx, payload); err != nil {
			slog.Error("OfflineWorker: background sync failed", "tag", tag, "error", err)
			return
		}
		s.broadcast(Message{Type: MessageSyncComplete, SyncType: tag})
	}

	// hand off without waiting for the handler
	go func() {
		select {
		case w.requests <- req:
		case <-w.stopped:
		}
	}()
	return nil
}

// Subscribe returns a channel receiving broadcast messages and a function to unsubscribe
func (w *Worker) Subscribe() (<-chan Message, func(), error) {
	ch := make(chan Message, 16)
	var id int
	err := w.do(func(_ context.Context, s *state) {
		id = s.nextSubID
		s.nextSubID++
		s.subscribers[id] = ch
	})
	if err != nil {
		return nil, nil, err
	}
	unsubscribe := func() {
		_ = w.do(func(_ context.Context, s *state) {
			if sub, ok := s.subscribers[id]; ok {
				close(sub)
				delete(s.subscribers, id)
			}
		})
	}
	return ch, unsubscribe, nil
}

// HandleMessage applies a page message and returns the reply, if the message has one
func (w *Worker) HandleMessage(msg Message) (*Message, error) {
	switch msg.Type {
	case MessageCacheIcons:
		if err := w.CacheIcons(msg.Icons); err != nil {
			return nil, err
		}
		slog.Debug("OfflineWorker: cached icons", "count", len(msg.Icons))
		return nil, nil
	case MessageClearCache:
		removed, err := w.Clear()
		if err != nil {
			return nil, err
		}
		slog.Debug("OfflineWorker: cache cleared", "removed", removed)
		return nil, nil
	case MessageGetCacheSize:
		size, err := w.Size()
		if err != nil {
			return nil, err
		}
		reply := cacheSizeMessage(size)
		return &reply, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *state) put(key string, entry *Entry) {
	if _, exists := s.entries[key]; exists {
		s.removeFromOrder(key)
	}
	s.entries[key] = entry
	s.order = append(s.order, key)

	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	metrics.OfflineCacheEntries.Set(float64(len(s.entries)))
}

func (s *state) removeFromOrder(key string) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// broadcast drops the message for subscribers that are not keeping up
func (s *state) broadcast(msg Message) {
	for id, ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
			slog.Warn("OfflineWorker: subscriber too slow, dropping message", "subscriber", id, "type", msg.Type)
		}
	}
}

func (e *Entry) clone() *Entry {
	body := make([]byte, len(e.Body))
	copy(body, e.Body)
	return &Entry{
		Status:   e.Status,
		Header:   e.Header.Clone(),
		Body:     body,
		StoredAt: e.StoredAt,
	}
}

func cacheKey(method, urlPath, rawQuery string) string {
	key := method + " " + urlPath
	if rawQuery != "" {
		key += "?" + rawQuery
	}
	return key
}
