package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheStatusHeader reports whether a response came from the cache.
const CacheStatusHeader = "X-Cache"

// snapshot is a stored response, replayed verbatim on a hit.
type snapshot struct {
	status int
	header http.Header
	body   []byte
}

func (s snapshot) replay(w gin.ResponseWriter) {
	for name, values := range s.header {
		w.Header()[name] = values
	}
	w.Header().Set(CacheStatusHeader, "HIT")
	w.WriteHeader(s.status)
	_, _ = w.Write(s.body)
}

// teeWriter copies everything the handler writes into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache keeps successful GET responses in memory for ttl, keyed by URI.
// Only mount it on routes whose response does not depend on the caller.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if hit, ok := store.Get(key); ok {
			hit.(snapshot).replay(c.Writer)
			c.Abort()
			return
		}

		c.Writer.Header().Set(CacheStatusHeader, "MISS")
		tee := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = tee
		c.Next()

		status := tee.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		header := tee.Header().Clone()
		header.Del(CacheStatusHeader)
		store.Set(key, snapshot{status: status, header: header, body: tee.buf.Bytes()}, ttl)
	}
}
