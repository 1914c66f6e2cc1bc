package config

import "time"

// CacheConfig controls the Redis cache in front of the public published-site
// endpoint.  Publishing, saving or rolling back a project evicts its entry,
// so the TTL only bounds how long an entry for a deleted project lingers.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 60*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "site"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 2<<20),
    }
}
