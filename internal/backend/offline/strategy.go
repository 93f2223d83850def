package offline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/jo-hoe/iconforge/internal/metrics"
	"github.com/labstack/echo/v4"
)

// Strategy decides how a route uses the offline cache
type Strategy string

const (
	CacheFirst           Strategy = "cache-first"
	NetworkFirst         Strategy = "network-first"
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
	NetworkOnly          Strategy = "network-only"
)

const (
	// CacheHeader reports how a response was produced: hit, miss, stale or fallback
	CacheHeader = "X-Offline-Cache"
	// RevalidateHeader marks the internal request refreshing a stale entry
	RevalidateHeader = "X-Offline-Revalidate"
)

// ParseStrategy validates a strategy name
func ParseStrategy(value string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(value))); s {
	case CacheFirst, NetworkFirst, StaleWhileRevalidate, NetworkOnly:
		return s, nil
	}
	return "", fmt.Errorf("unknown cache strategy %q", value)
}

// Route applies Strategy to Path, or to every path below it when Prefix is set
type Route struct {
	Path     string
	Prefix   bool
	Strategy Strategy
}

func (r Route) matches(urlPath string) bool {
	if r.Prefix {
		return strings.HasPrefix(urlPath, r.Path)
	}
	return urlPath == r.Path
}

// Middleware serves GET requests through the worker cache according to the configured routes
type Middleware struct {
	worker *Worker
	routes []Route
	origin http.Handler
}

// NewMiddleware creates the cache middleware.
// Exact routes win over prefixes; among prefixes the longest match wins.
func NewMiddleware(worker *Worker, routes []Route) *Middleware {
	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Prefix != sorted[j].Prefix {
			return !sorted[i].Prefix
		}
		return len(sorted[i].Path) > len(sorted[j].Path)
	})
	return &Middleware{worker: worker, routes: sorted}
}

// SetOrigin sets the handler used to revalidate stale entries, usually the echo instance itself
func (m *Middleware) SetOrigin(origin http.Handler) {
	m.origin = origin
}

func (m *Middleware) strategyFor(urlPath string) Strategy {
	for _, route := range m.routes {
		if route.matches(urlPath) {
			return route.Strategy
		}
	}
	return NetworkOnly
}

// Handler returns the echo middleware function
func (m *Middleware) Handler() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet || strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				return next(c)
			}

			strategy := m.strategyFor(req.URL.Path)
			key := cacheKey(req.Method, req.URL.Path, req.URL.RawQuery)

			if req.Header.Get(RevalidateHeader) != "" {
				return m.revalidate(c, next, key)
			}

			switch strategy {
			case CacheFirst:
				return m.cacheFirst(c, next, key)
			case NetworkFirst:
				return m.networkFirst(c, next, key)
			case StaleWhileRevalidate:
				return m.staleWhileRevalidate(c, next, key)
			default:
				metrics.OfflineCacheRequests.WithLabelValues(string(NetworkOnly), "network").Inc()
				return next(c)
			}
		}
	}
}

func (m *Middleware) cacheFirst(c echo.Context, next echo.HandlerFunc, key string) error {
	if entry, ok := m.worker.Get(key); ok {
		metrics.OfflineCacheRequests.WithLabelValues(string(CacheFirst), "hit").Inc()
		return serveEntry(c, entry, "hit")
	}

	buf, err := runBuffered(c, next)
	if err != nil {
		return err
	}
	m.store(key, buf)
	metrics.OfflineCacheRequests.WithLabelValues(string(CacheFirst), "miss").Inc()
	return buf.flush(c, "miss")
}

func (m *Middleware) networkFirst(c echo.Context, next echo.HandlerFunc, key string) error {
	buf, err := runBuffered(c, next)
	if err == nil && buf.status < http.StatusInternalServerError {
		m.store(key, buf)
		metrics.OfflineCacheRequests.WithLabelValues(string(NetworkFirst), "network").Inc()
		return buf.flush(c, "miss")
	}

	if entry, ok := m.worker.Get(key); ok {
		slog.Debug("OfflineCache: network failed, serving cached response", "key", key, "error", err)
		metrics.OfflineCacheRequests.WithLabelValues(string(NetworkFirst), "fallback").Inc()
		return serveEntry(c, entry, "fallback")
	}

	metrics.OfflineCacheRequests.WithLabelValues(string(NetworkFirst), "miss").Inc()
	if err != nil {
		return err
	}
	return buf.flush(c, "miss")
}

func (m *Middleware) staleWhileRevalidate(c echo.Context, next echo.HandlerFunc, key string) error {
	entry, ok := m.worker.Get(key)
	if !ok {
		buf, err := runBuffered(c, next)
		if err != nil {
			return err
		}
		m.store(key, buf)
		metrics.OfflineCacheRequests.WithLabelValues(string(StaleWhileRevalidate), "miss").Inc()
		return buf.flush(c, "miss")
	}

	if m.origin != nil {
		revalidation := c.Request().Clone(context.WithoutCancel(c.Request().Context()))
		revalidation.Header.Set(RevalidateHeader, "1")
		go func() {
			m.origin.ServeHTTP(newResponseBuffer(), revalidation)
		}()
	}
	metrics.OfflineCacheRequests.WithLabelValues(string(StaleWhileRevalidate), "stale").Inc()
	return serveEntry(c, entry, "stale")
}

// revalidate refreshes the entry for key from the handler
func (m *Middleware) revalidate(c echo.Context, next echo.HandlerFunc, key string) error {
	buf, err := runBuffered(c, next)
	if err != nil {
		slog.Debug("OfflineCache: revalidation failed", "key", key, "error", err)
		return err
	}
	m.store(key, buf)
	return buf.flush(c, "miss")
}

// store caches successful responses only. Cookies are never replayed from the cache.
func (m *Middleware) store(key string, buf *responseBuffer) {
	if buf.status != http.StatusOK || strings.Contains(buf.header.Get("Cache-Control"), "no-store") {
		return
	}
	header := buf.header.Clone()
	header.Del("Set-Cookie")
	if err := m.worker.Put(key, &Entry{Status: buf.status, Header: header, Body: buf.body.Bytes()}); err != nil {
		slog.Warn("OfflineCache: failed to store response", "key", key, "error", err)
	}
}

func serveEntry(c echo.Context, entry *Entry, result string) error {
	header := c.Response().Header()
	for k, v := range entry.Header {
		header[k] = v
	}
	header.Set(CacheHeader, result)
	contentType := entry.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = http.DetectContentType(entry.Body)
	}
	return c.Blob(entry.Status, contentType, entry.Body)
}

// runBuffered runs next with the response captured instead of sent
func runBuffered(c echo.Context, next echo.HandlerFunc) (*responseBuffer, error) {
	res := c.Response()
	original := res.Writer
	buf := newResponseBuffer()
	res.Writer = buf

	err := next(c)

	res.Writer = original
	// the buffered write marked the response committed; the real write happens in flush
	res.Committed = false
	res.Status = http.StatusOK
	res.Size = 0
	return buf, err
}

// responseBuffer is an http.ResponseWriter that keeps everything in memory
type responseBuffer struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: http.Header{}, status: http.StatusOK}
}

func (b *responseBuffer) Header() http.Header {
	return b.header
}

func (b *responseBuffer) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}

// flush sends the buffered response to the client
func (b *responseBuffer) flush(c echo.Context, result string) error {
	if !b.wroteHeader && b.body.Len() == 0 {
		return nil
	}
	res := c.Response()
	header := res.Header()
	for k, v := range b.header {
		header[k] = v
	}
	header.Set(CacheHeader, result)
	res.WriteHeader(b.status)
	_, err := res.Write(b.body.Bytes())
	return err
}
