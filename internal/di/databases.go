package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/config"
	"github.com/tradefolio/tracker/internal/database"
)

// InitializeDatabases opens tracker.db and cache.db and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// tracker.db - users, ledger and watchlists
	trackerDB, err := database.New(database.Config{
		Path:    cfg.TrackerDBPath(),
		Profile: database.ProfileLedger,
		Name:    "tracker",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracker database: %w", err)
	}
	container.TrackerDB = trackerDB

	// cache.db - market data responses, safe to delete
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{trackerDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized and schemas applied")

	return container, nil
}
