package di

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/clients/marketdata"
	"github.com/tradefolio/tracker/internal/config"
	"github.com/tradefolio/tracker/internal/events"
	"github.com/tradefolio/tracker/internal/modules/ledger"
	"github.com/tradefolio/tracker/internal/modules/portfolio"
	"github.com/tradefolio/tracker/internal/modules/stream"
	"github.com/tradefolio/tracker/internal/modules/users"
	"github.com/tradefolio/tracker/internal/modules/watchlist"
	"github.com/tradefolio/tracker/internal/reliability"
)

const uploaderInitTimeout = 30 * time.Second

// InitializeServices creates the services and stores them in the container
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	userService, err := users.NewService(container.UserRepo, users.TokenConfig{
		SecretKey: cfg.SecretKey,
		Algorithm: cfg.JWTAlgorithm,
		TTL:       cfg.AccessTokenExpiry,
	}, container.EventManager, log)
	if err != nil {
		return fmt.Errorf("failed to create user service: %w", err)
	}
	container.UserService = userService

	container.MarketData = marketdata.NewClient(marketdata.Config{
		AlphaVantageAPIKey: cfg.AlphaVantageAPIKey,
		QuoteTTL:           cfg.QuoteCacheTTL,
	}, container.ClientDataRepo, log)

	container.Ledger = ledger.NewEngine(
		ledger.NewSQLiteUnitOfWork(container.TrackerDB.Conn(), log),
		container.EventManager,
		log,
	)

	container.PortfolioService = portfolio.NewService(container.Ledger, container.MarketData, log)
	container.WatchlistService = watchlist.NewService(container.WatchlistRepo, container.EventManager, log)

	container.Hub = stream.NewHub(container.UserService, container.PortfolioService, stream.Config{
		OriginPatterns: originPatterns(cfg.CORSAllowedOrigins),
	}, log)
	container.Hub.SubscribeToLedger(container.EventBus)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), uploaderInitTimeout)
		defer cancel()

		uploader, err := reliability.NewS3Uploader(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup uploader: %w", err)
		}

		container.BackupService = reliability.NewBackupService(
			uploader,
			container.EventManager,
			filepath.Join(cfg.DataDir, "backup-staging"),
			log,
			container.TrackerDB,
		)
	}

	log.Info().Msg("Services initialized")
	return nil
}

// originPatterns turns CORS origins into websocket host patterns. A wildcard
// origin disables the check.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			return nil
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(origin, "/"))
	}
	return patterns
}
