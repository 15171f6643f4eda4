package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"finrag/internal/ai"
	"finrag/internal/config"
)

// BuildBackends assembles the fallback chain selected by cfg.Backend:
//
//	remote:   primary endpoint, then the secondary endpoint when configured
//	local:    fastembed model, then the secondary endpoint when configured
//	disabled: no backends; every result is a fallback
//
// A local model that fails to load is logged and skipped so the secondary
// endpoint can still serve.
func BuildBackends(cfg config.EmbeddingConfig, logger *zap.Logger) ([]Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var backends []Backend

	switch cfg.Backend {
	case "disabled":
		return nil, nil
	case "remote":
		primary, err := NewRemoteBackend(endpointConfig(cfg, cfg.Primary))
		if err != nil {
			return nil, fmt.Errorf("primary embedding endpoint: %w", err)
		}
		backends = append(backends, primary)
	case "local":
		local, err := NewLocalBackend(LocalConfig{
			Model:     cfg.Local.Model,
			CacheDir:  cfg.Local.CacheDir,
			MaxLength: cfg.Local.MaxLength,
		})
		if err != nil {
			logger.Warn("local embedding model not loaded", zap.String("model", cfg.Local.Model), zap.Error(err))
		} else {
			backends = append(backends, local)
		}
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}

	if cfg.Secondary.BaseURL != "" {
		secondary, err := NewRemoteBackend(endpointConfig(cfg, cfg.Secondary))
		if err != nil {
			return nil, fmt.Errorf("secondary embedding endpoint: %w", err)
		}
		backends = append(backends, secondary)
	}
	return backends, nil
}

func endpointConfig(cfg config.EmbeddingConfig, ep config.EmbeddingEndpointConfig) ai.EmbeddingConfig {
	return ai.EmbeddingConfig{
		BaseURL:       ep.BaseURL,
		APIKey:        ep.APIKey,
		Model:         ep.Model,
		Format:        ep.Format,
		Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:    cfg.MaxRetries,
		RatePerSecond: cfg.RateLimitPerSecond,
	}
}
