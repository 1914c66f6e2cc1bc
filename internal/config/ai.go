package config

import "time"

// AIConfig describes how the completion provider is reached and which
// models are tried.  The model lists are raw overrides; the roster package
// merges them with its built-in defaults.
type AIConfig struct {
    APIKey         string
    BaseURL        string
    MaxTokens      int
    EnhanceTokens  int
    Timeout        time.Duration
    HistoryLimit   int
    EnhanceModels  []string // AI_ENHANCE_MODELS
    GenerateModels []string // AI_GENERATE_MODELS
    Models         []string // AI_MODELS followed by AI_MODEL
}

const defaultMaxTokens = 4096

// LoadAIConfig reads the provider settings.  A non-positive AI_MAX_TOKENS
// falls back to the default ceiling.
func LoadAIConfig() AIConfig {
    cfg := AIConfig{
        APIKey:         envStr("AI_API_KEY", ""),
        BaseURL:        envStr("AI_BASE_URL", "https://openrouter.ai/api/v1"),
        MaxTokens:      envInt("AI_MAX_TOKENS", defaultMaxTokens),
        EnhanceTokens:  envInt("AI_ENHANCE_MAX_TOKENS", 1024),
        Timeout:        envDur("AI_TIMEOUT", 120*time.Second),
        HistoryLimit:   envInt("AI_HISTORY_LIMIT", 10),
        EnhanceModels:  envList("AI_ENHANCE_MODELS"),
        GenerateModels: envList("AI_GENERATE_MODELS"),
        Models:         append(envList("AI_MODELS"), envList("AI_MODEL")...),
    }
    if cfg.MaxTokens <= 0 {
        cfg.MaxTokens = defaultMaxTokens
    }
    if cfg.EnhanceTokens <= 0 {
        cfg.EnhanceTokens = 1024
    }
    if cfg.HistoryLimit < 0 {
        cfg.HistoryLimit = 0
    }
    return cfg
}

// CreditConfig holds the daily allotment and the per-generation price.
type CreditConfig struct {
    Daily         int
    PerGeneration int
}

func LoadCreditConfig() CreditConfig {
    cfg := CreditConfig{
        Daily:         envInt("CREDITS_DAILY", 20),
        PerGeneration: envInt("CREDITS_PER_GENERATION", 5),
    }
    if cfg.Daily < 0 {
        cfg.Daily = 0
    }
    if cfg.PerGeneration < 0 {
        cfg.PerGeneration = 0
    }
    return cfg
}
