// Package backend opens the document store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"qms/callboard-service/internal/config"
	"qms/callboard-service/internal/store"
	"qms/callboard-service/internal/store/dynamo"
	"qms/callboard-service/internal/store/filestore"
	"qms/callboard-service/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Open returns the configured DocumentStore and a func releasing whatever it
// holds open.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.DocumentStore, func(), error) {
	switch cfg.StoreMode {
	case config.StoreModeFile:
		docs, err := filestore.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("store", "file").Str("data_dir", cfg.DataDir).Msg("document store ready")
		return docs, func() {}, nil

	case config.StoreModePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		docs := postgres.NewStore(pool)
		if err := docs.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info().Str("store", "postgres").Msg("document store ready")
		return docs, pool.Close, nil

	case config.StoreModeDynamo:
		docs, err := dynamo.NewStore(ctx, dynamo.Config{
			Mode:     dynamo.Mode(cfg.DynamoMode),
			Endpoint: cfg.DynamoEndpoint,
			Region:   cfg.DynamoRegion,
			Table:    cfg.DynamoTable,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return docs, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store mode %q", cfg.StoreMode)
	}
}
