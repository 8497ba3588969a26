package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/fplcoach/internal/adapters/predictions/redisstore"
	"github.com/okian/fplcoach/internal/adapters/predictions/remote"
	"github.com/okian/fplcoach/internal/adapters/predictions/sqlstore"
	"github.com/okian/fplcoach/internal/config"
	"github.com/okian/fplcoach/internal/domain/catalog"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/pkg/logger"
)

// errNoStaticCatalog is returned when the static provider has nothing to serve.
var errNoStaticCatalog = errors.New("static prediction source requires catalog_path")

// sources bundles the prediction provider and catalog source picked from config.
type sources struct {
	provider prediction.Provider
	catalog  catalog.Source
	closers  []io.Closer
}

// Close releases every backing connection.
func (s *sources) Close(ctx context.Context, log logger.Logger) {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Warn(ctx, "closing prediction source", logger.Error(err))
		}
	}
}

// buildSources connects the configured prediction provider and catalog.
// The catalog file wins over the postgres players table when both are set.
func buildSources(ctx context.Context, cfg *config.Config, variants []string) (*sources, error) {
	out := &sources{}
	var fileSrc *catalog.FileSource
	if cfg.CatalogPath != "" {
		fileSrc = catalog.NewFileSource(cfg.CatalogPath)
		out.catalog = fileSrc
	}

	switch cfg.PredictionSource {
	case config.SourceStatic:
		if fileSrc == nil {
			return nil, errNoStaticCatalog
		}
		_, entries, err := fileSrc.LoadWithPredictions(ctx)
		if err != nil {
			return nil, err
		}
		minLatency, maxLatency := cfg.StaticLatency()
		out.provider = prediction.NewStaticProvider(entries,
			prediction.WithLatencyRange(minLatency, maxLatency),
			prediction.WithVariants(variants...),
		)

	case config.SourceRedis:
		store, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		out.provider = store
		out.closers = append(out.closers, store)

	case config.SourcePostgres:
		store, err := sqlstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		out.provider = store
		out.closers = append(out.closers, store)
		if out.catalog == nil {
			out.catalog = store
		}

	case config.SourceRemote:
		client, err := remote.New(cfg.RemoteURL, remote.WithRateLimit(cfg.RemoteRateLimit))
		if err != nil {
			return nil, err
		}
		out.provider = client

	default:
		return nil, fmt.Errorf("%w: unknown prediction_source %q", config.ErrInvalidConfig, cfg.PredictionSource)
	}

	// A postgres DSN alone can still back the catalog for the other sources.
	if out.catalog == nil && cfg.PostgresDSN != "" {
		store, err := sqlstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			out.Close(ctx, logger.Get())
			return nil, err
		}
		out.catalog = store
		out.closers = append(out.closers, store)
	}

	return out, nil
}
