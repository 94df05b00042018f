package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/config"
)

// ResponseCache keeps successful GET responses in Redis per tenant.  Every
// key lives under "<prefix>:<tenant>:" so a tenant never reads another
// tenant's entry and all of its entries can be dropped at once after a
// write.  A nil Redis client or a disabled config turns both middlewares
// into pass-throughs.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log logrus.FieldLogger
}

// NewResponseCache returns a cache over rdb, which may be nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log logrus.FieldLogger) *ResponseCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log.WithField("component", "response-cache")}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

// cachedResponse is the stored form of a response.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the response body into a buffer until it grows past
// limit; an oversized response is served but not cached.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (br *bodyRecorder) WriteHeader(code int) {
	br.status = code
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if !br.overflow {
		if br.limit > 0 && br.buf.Len()+len(b) > br.limit {
			br.overflow = true
			br.buf.Reset()
		} else {
			br.buf.Write(b)
		}
	}
	return br.ResponseWriter.Write(b)
}

func (rc *ResponseCache) tenantPrefix(tenant string) string {
	return fmt.Sprintf("%s:%s:", rc.cfg.Prefix, tenant)
}

// globEscaper quotes the SCAN MATCH metacharacters of a tenant id.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func (rc *ResponseCache) key(c echo.Context) string {
	u := c.Request().URL
	sum := sha1.Sum([]byte(u.Path + "?" + u.RawQuery))
	return fmt.Sprintf("%s%x", rc.tenantPrefix(TenantID(c)), sum)
}

// Serve answers GET requests from the cache and stores 200 responses on a
// miss.  It must run after JWTAuth; requests without a tenant bypass it.
func (rc *ResponseCache) Serve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rc.enabled() {
			return next
		}
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet || TenantID(c) == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			key := rc.key(c)

			if raw, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if err := json.Unmarshal(raw, &hit); err == nil {
					res := c.Response()
					if hit.ContentType != "" {
						res.Header().Set(echo.HeaderContentType, hit.ContentType)
					}
					res.Header().Set("X-Cache", "HIT")
					res.WriteHeader(hit.Status)
					_, err := res.Write(hit.Body)
					return err
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				rc.log.WithError(err).WithField("key", key).Warn("storing cached response failed")
			}
			return nil
		}
	}
}

// InvalidateOnSuccess drops the tenant's cached responses after the
// wrapped handler answered with a 2xx status.
func (rc *ResponseCache) InvalidateOnSuccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rc.enabled() {
			return next
		}
		return func(c echo.Context) error {
			err := next(c)
			if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
				if ierr := rc.Invalidate(context.WithoutCancel(c.Request().Context()), TenantID(c)); ierr != nil {
					rc.log.WithError(ierr).WithField("tenant", TenantID(c)).Warn("invalidating cached responses failed")
				}
			}
			return err
		}
	}
}

// Invalidate deletes every cached response of tenant.
func (rc *ResponseCache) Invalidate(ctx context.Context, tenant string) error {
	if !rc.enabled() || tenant == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var keys []string
	iter := rc.rdb.Scan(ctx, 0, globEscaper.Replace(rc.tenantPrefix(tenant))+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.rdb.Del(ctx, keys...).Err()
}
