package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CacheHeader reports HIT or MISS on cached routes.
const CacheHeader = "X-Cache"

// Cache serves repeated GET requests for the same URI from store. Responses that set
// cookies are never stored. Headers already set by earlier middleware (CORS) win over
// cached ones. Callers flush store after writes that change cached data.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if resp, found := store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				if _, set := c.Writer.Header()[k]; !set {
					c.Writer.Header()[k] = v
				}
			}
			c.Writer.Header().Set(CacheHeader, "HIT")
			c.Writer.WriteHeader(cached.status)
			_, _ = c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		c.Writer.Header().Set(CacheHeader, "MISS")
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if blw.Status() < 200 || blw.Status() >= 300 || blw.Header().Get("Set-Cookie") != "" {
			return
		}
		headers := blw.Header().Clone()
		headers.Del(CacheHeader)
		store.Set(key, cachedResponse{
			status:  blw.Status(),
			headers: headers,
			body:    bytes.Clone(blw.body.Bytes()),
		}, duration)
	}
}
