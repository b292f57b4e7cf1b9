package cmd

import (
	"context"
	"fmt"

	"github.com/ghyeongl/pendingfs/logging"
	"github.com/ghyeongl/pendingfs/pending"
	"github.com/ghyeongl/pendingfs/storage"
	"github.com/ghyeongl/pendingfs/storage/local"
	"github.com/ghyeongl/pendingfs/storage/s3"
)

// openProvider builds the backend named by cfg.Provider, wrapped in a
// listing cache when cfg.CacheTTL is positive.
func openProvider(ctx context.Context, cfg *Config) (storage.Provider, error) {
	opts := local.Options{
		TrashDir:   cfg.TrashDir,
		Ignore:     cfg.Ignore,
		ShowHidden: cfg.ShowHidden,
	}

	var p storage.Provider
	switch cfg.Provider {
	case ProviderLocal:
		lp, err := local.NewOS(cfg.Root, opts)
		if err != nil {
			return nil, fmt.Errorf("open local provider: %w", err)
		}
		p = lp
	case ProviderMemory:
		p = local.NewMemory(opts)
	case ProviderS3:
		sp, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("open s3 provider: %w", err)
		}
		p = sp
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	logging.Sub("cmd").Info("provider opened",
		"type", cfg.Provider, "scheme", p.Scheme(), "container", p.Container(), "caps", p.Capabilities().String())

	if cfg.CacheTTL > 0 {
		return storage.NewCachedProvider(p, cfg.CacheTTL), nil
	}
	return p, nil
}

func newStore(cfg *Config) *pending.Store {
	return pending.New(
		pending.WithHistoryLimit(cfg.HistoryLimit),
		pending.WithRetry(cfg.Retries, cfg.RetryBase),
	)
}
