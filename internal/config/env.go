package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// envStr returns the value of k or d when the variable is unset or empty.
func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

// envBool accepts the usual spellings of true/false.  Anything else falls
// back to the default.
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch strings.ToLower(strings.TrimSpace(v)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
        return dur
    }
    return d
}

// envList splits a comma separated variable into trimmed, non-empty items.
// Order is preserved; duplicates are left for the caller to handle.
func envList(k string) []string {
    v := os.Getenv(k)
    if v == "" {
        return nil
    }
    var out []string
    for _, p := range strings.Split(v, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
