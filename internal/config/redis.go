package config

// Redis backs the generation rate limiter and the published-site cache.  Both
// are optional: when the server cannot be reached NewRedisClient returns nil
// and callers fall back to pass-through middleware.

import (
    "context"
    "crypto/tls"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from REDIS_URL, or from REDIS_ADDR /
// REDIS_HOST+REDIS_PORT, REDIS_PASSWORD, REDIS_DB and REDIS_TLS.  It returns
// nil when the server does not answer a ping within two seconds.
func NewRedisClient() *redis.Client {
    var opt *redis.Options
    if url := envStr("REDIS_URL", ""); url != "" {
        parsed, err := redis.ParseURL(url)
        if err != nil {
            return nil
        }
        opt = parsed
    } else {
        addr := envStr("REDIS_ADDR", "localhost:6379")
        if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
            addr = host + ":" + port
        }
        opt = &redis.Options{
            Addr:     addr,
            Password: envStr("REDIS_PASSWORD", ""),
            DB:       envInt("REDIS_DB", 0),
        }
        if tlsEnv := envStr("REDIS_TLS", ""); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
            opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
        }
    }
    client := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
