package offline

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jo-hoe/iconforge/internal/backend/icons"
)

func newTestWorker(t *testing.T, maxEntries int) *Worker {
	t.Helper()
	w := NewWorker(context.Background(), maxEntries)
	t.Cleanup(w.Stop)
	return w
}

func TestWorker_PutGet(t *testing.T) {
	w := newTestWorker(t, 10)
	header := http.Header{}
	header.Set("Content-Type", "text/plain")

	if err := w.Put("GET /a", &Entry{Status: http.StatusOK, Header: header, Body: []byte("hello")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok := w.Get("GET /a")
	if !ok {
		t.Fatal("Expected cached entry")
	}
	if string(entry.Body) != "hello" || entry.Header.Get("Content-Type") != "text/plain" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if entry.StoredAt.IsZero() {
		t.Error("Expected StoredAt to be set")
	}

	// callers get copies
	entry.Body[0] = 'j'
	again, _ := w.Get("GET /a")
	if string(again.Body) != "hello" {
		t.Error("Expected cached body to be isolated from callers")
	}

	if _, ok := w.Get("GET /missing"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestWorker_EvictsOldestFirst(t *testing.T) {
	w := newTestWorker(t, 2)
	for _, key := range []string{"a", "b", "c"} {
		if err := w.Put(key, &Entry{Status: http.StatusOK}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if _, ok := w.Get("a"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, ok := w.Get(key); !ok {
			t.Errorf("Expected %s to be cached", key)
		}
	}

	// re-putting refreshes the position
	_ = w.Put("b", &Entry{Status: http.StatusOK})
	_ = w.Put("d", &Entry{Status: http.StatusOK})
	if _, ok := w.Get("c"); ok {
		t.Error("Expected c to be evicted after b was refreshed")
	}
	if size, _ := w.Size(); size != 2 {
		t.Errorf("Expected size 2, got %d", size)
	}
}

func TestWorker_HandleMessage(t *testing.T) {
	w := newTestWorker(t, 10)

	reply, err := w.HandleMessage(Message{Type: MessageCacheIcons, Icons: []CachedIcon{
		{Filename: "icon-16x16.png", EncodedImage: icons.EncodeDataURL("image/png", []byte{1})},
		{Filename: "icon-32x32.png", EncodedImage: icons.EncodeDataURL("image/png", []byte{2})},
	}})
	if err != nil || reply != nil {
		t.Fatalf("CACHE_ICONS: unexpected reply %v, %v", reply, err)
	}

	reply, err = w.HandleMessage(Message{Type: MessageGetCacheSize})
	if err != nil {
		t.Fatalf("GET_CACHE_SIZE failed: %v", err)
	}
	if reply.Type != MessageCacheSize || reply.Size == nil || *reply.Size != 2 {
		t.Errorf("Expected CACHE_SIZE 2, got %+v", reply)
	}

	entry, ok := w.Get(cacheKey(http.MethodGet, IconPathPrefix+"icon-32x32.png", ""))
	if !ok || entry.Body[0] != 2 || entry.Header.Get("Content-Type") != "image/png" {
		t.Errorf("Expected icon to be cached under %s", IconPathPrefix)
	}

	if _, err := w.HandleMessage(Message{Type: MessageClearCache}); err != nil {
		t.Fatalf("CLEAR_CACHE failed: %v", err)
	}
	reply, _ = w.HandleMessage(Message{Type: MessageGetCacheSize})
	if *reply.Size != 0 {
		t.Errorf("Expected empty cache after CLEAR_CACHE, got %d", *reply.Size)
	}

	if _, err := w.HandleMessage(Message{Type: "NOPE"}); err == nil {
		t.Error("Expected error for unknown message type")
	}
	if _, err := w.HandleMessage(Message{Type: MessageCacheIcons, Icons: []CachedIcon{{Filename: "x.png", EncodedImage: "garbage"}}}); err == nil {
		t.Error("Expected error for undecodable icon")
	}
}

func TestWorker_RequestSync_BroadcastsCompletion(t *testing.T) {
	w := newTestWorker(t, 10)

	received := make(chan any, 1)
	if err := w.RegisterSync("icon-records", func(ctx context.Context, payload any) error {
		received <- payload
		return nil
	}); err != nil {
		t.Fatalf("RegisterSync failed: %v", err)
	}

	messages, unsubscribe, err := w.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsubscribe()

	if err := w.RequestSync("icon-records", 42); err != nil {
		t.Fatalf("RequestSync failed: %v", err)
	}

	select {
	case payload := <-received:
		if payload != 42 {
			t.Errorf("Expected payload 42, got %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sync handler did not run")
	}

	select {
	case msg := <-messages:
		if msg.Type != MessageSyncComplete || msg.SyncType != "icon-records" {
			t.Errorf("Unexpected broadcast %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected SYNC_COMPLETE broadcast")
	}
}

func TestWorker_RequestSync_FailureDoesNotBroadcast(t *testing.T) {
	w := newTestWorker(t, 10)
	_ = w.RegisterSync("fails", func(ctx context.Context, payload any) error {
		return errors.New("store down")
	})
	messages, unsubscribe, _ := w.Subscribe()
	defer unsubscribe()

	_ = w.RequestSync("fails", nil)
	// a round trip through the worker guarantees the sync request ran first or is still queued
	time.Sleep(50 * time.Millisecond)
	_, _ = w.Size()

	select {
	case msg := <-messages:
		t.Errorf("Expected no broadcast, got %+v", msg)
	default:
	}
}

func TestWorker_Stop(t *testing.T) {
	w := NewWorker(context.Background(), 10)
	messages, _, err := w.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	w.Stop()
	w.Stop()

	if _, ok := <-messages; ok {
		t.Error("Expected subscriber channel to be closed on stop")
	}
	if err := w.Put("a", &Entry{}); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Expected ErrWorkerStopped, got %v", err)
	}
}
