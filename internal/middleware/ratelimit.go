package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"

    "github.com/iliyamo/aether/internal/config"
)

// tokenBucketScript refills the bucket by whole intervals, takes one token
// when available and returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + intervals * refill_tokens)
        last_refill = last_refill + intervals * interval_ms
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

// GenerationLimit returns a Redis token bucket keyed per authenticated
// user, falling back to the client IP.  It passes every request through
// when disabled, when rdb is nil or when Redis errors.
func GenerationLimit(cfg config.RateLimitConfig, rdb *redis.Client, log zerolog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg.Prefix, c)
            args := []interface{}{
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL / time.Second),
            }

            vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
            if err != nil {
                log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing request")
                return next(c)
            }
            allowed, remaining, retryMs, ok := bucketResult(vals)
            if !ok {
                log.Warn().Str("key", key).Interface("result", vals).Msg("unexpected rate limit result")
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }

            if !allowed {
                secs := retryAfterSeconds(retryMs)
                h.Set("Retry-After", strconv.Itoa(secs))
                log.Debug().Str("key", key).Int64("retry_ms", retryMs).Msg("rate limited")
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "rate limit exceeded",
                    "code":        "too_many_requests",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func bucketResult(vals []int64) (allowed bool, remaining, retryMs int64, ok bool) {
    if len(vals) != 3 {
        return false, 0, 0, false
    }
    return vals[0] == 1, vals[1], vals[2], true
}

func retryAfterSeconds(ms int64) int {
    secs := int(math.Ceil(float64(ms) / 1000.0))
    if secs < 0 {
        return 0
    }
    return secs
}

func rateKey(prefix string, c echo.Context) string {
    if uid := UserID(c); uid != "" {
        return strings.Join([]string{prefix, "user", uid}, ":")
    }
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    return strings.Join([]string{prefix, "ip", ip}, ":")
}
