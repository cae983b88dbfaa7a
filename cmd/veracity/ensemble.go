package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spboyer/veracity/internal/cache"
	"github.com/spboyer/veracity/internal/consensus"
	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/projectconfig"
)

// loadProject reads .env (if any) and .veracity.yaml from the working
// directory upward.
func loadProject() (*projectconfig.ProjectConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := projectconfig.Load(".")
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEnsemble creates the configured detectors and the aggregator over
// them. offline swaps every detector for the local heuristic.
func buildEnsemble(cfg *projectconfig.ProjectConfig, offline bool) (*consensus.Aggregator, error) {
	var configs []detectors.Config
	if offline {
		configs = cfg.ResolveOffline()
	} else {
		var err error
		if configs, err = cfg.Resolve(os.Getenv); err != nil {
			return nil, err
		}
	}

	dets := make([]detectors.Detector, 0, len(configs))
	for _, c := range configs {
		d, err := detectors.Create(c)
		if err != nil {
			return nil, err
		}
		dets = append(dets, d)
	}

	return consensus.New(dets, consensus.WithTimeout(cfg.RequestTimeout()))
}

// openCache returns nil when caching is off.
func openCache(cfg *projectconfig.ProjectConfig) (cache.Cache, error) {
	if !cfg.CacheEnabled() {
		return nil, nil
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Dir, cfg.Cache.RedisURL, ttl)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

func closeCache(c cache.Cache) {
	if closer, ok := c.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Debug("closing cache", "error", err)
		}
	}
}
