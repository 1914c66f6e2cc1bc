package middleware

import (
    "bytes"
    "context"
    "encoding/binary"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"

    "github.com/iliyamo/aether/internal/config"
)

// SiteCache keeps rendered published sites in Redis, keyed by project id.
// A nil *SiteCache, or one built without a client, caches nothing.
type SiteCache struct {
    rdb *redis.Client
    cfg config.CacheConfig
    log zerolog.Logger
}

func NewSiteCache(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) *SiteCache {
    if !cfg.Enabled || rdb == nil {
        return &SiteCache{cfg: cfg, log: log}
    }
    if cfg.TTL <= 0 {
        cfg.TTL = time.Minute
    }
    return &SiteCache{rdb: rdb, cfg: cfg, log: log}
}

func (sc *SiteCache) enabled() bool { return sc != nil && sc.rdb != nil }

func (sc *SiteCache) key(projectID string) string {
    return sc.cfg.Prefix + ":" + projectID
}

// Evict drops the cached copy of a project.  Call it after anything that
// changes what the public endpoint serves.
func (sc *SiteCache) Evict(ctx context.Context, projectID string) {
    if !sc.enabled() {
        return
    }
    if err := sc.rdb.Del(ctx, sc.key(projectID)).Err(); err != nil {
        sc.log.Warn().Err(err).Str("project_id", projectID).Msg("site cache eviction failed")
    }
}

// Middleware serves GET requests for the route's :id param from the cache
// and stores successful responses up to MaxBodyBytes.  X-Cache reports HIT
// or MISS.
func (sc *SiteCache) Middleware() echo.MiddlewareFunc {
    if !sc.enabled() {
        return passThrough
    }
    maxBody := int64(sc.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id := c.Param("id")
            if c.Request().Method != http.MethodGet || id == "" {
                return next(c)
            }
            ctx := c.Request().Context()
            key := sc.key(id)

            if bs, err := sc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, contentType, body, ok := decodeSite(bs); ok {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(status, contentType, body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            payload := encodeSite(cw.status, c.Response().Header().Get(echo.HeaderContentType), cw.buf.Bytes())
            if err := sc.rdb.Set(context.WithoutCancel(ctx), key, payload, sc.cfg.TTL).Err(); err != nil {
                sc.log.Warn().Err(err).Str("project_id", id).Msg("site cache store failed")
            }
            return nil
        }
    }
}

// captureWriter copies the response body while forwarding it.  Bodies
// larger than limit are marked truncated and not cached.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int64
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
            cw.truncated = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// encodeSite packs [4 bytes status][2 bytes content-type length][content-type][body].
func encodeSite(status int, contentType string, body []byte) []byte {
    out := make([]byte, 6+len(contentType)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint16(out[4:6], uint16(len(contentType)))
    copy(out[6:], contentType)
    copy(out[6+len(contentType):], body)
    return out
}

func decodeSite(bs []byte) (status int, contentType string, body []byte, ok bool) {
    if len(bs) < 6 {
        return 0, "", nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    n := int(binary.BigEndian.Uint16(bs[4:6]))
    if 6+n > len(bs) {
        return 0, "", nil, false
    }
    return status, string(bs[6 : 6+n]), bs[6+n:], true
}
