// Package di wires databases, repositories, services and jobs into a Container.
package di

import (
	"github.com/tradefolio/tracker/internal/clientdata"
	"github.com/tradefolio/tracker/internal/clients/marketdata"
	"github.com/tradefolio/tracker/internal/database"
	"github.com/tradefolio/tracker/internal/events"
	"github.com/tradefolio/tracker/internal/modules/ledger"
	"github.com/tradefolio/tracker/internal/modules/portfolio"
	"github.com/tradefolio/tracker/internal/modules/stream"
	"github.com/tradefolio/tracker/internal/modules/users"
	"github.com/tradefolio/tracker/internal/modules/watchlist"
	"github.com/tradefolio/tracker/internal/reliability"
	"github.com/tradefolio/tracker/internal/scheduler"
)

// Container holds every long-lived dependency of the application.
// It is built by Wire and handed to the HTTP server.
type Container struct {
	// Databases
	TrackerDB *database.DB // users, transactions, holdings, watchlist
	CacheDB   *database.DB // upstream market data cache

	// Repositories
	UserRepo       *users.Repository
	WatchlistRepo  *watchlist.Repository
	ClientDataRepo *clientdata.Repository

	// Clients
	MarketData *marketdata.Client

	// Services
	EventBus         *events.Bus
	EventManager     *events.Manager
	UserService      *users.Service
	Ledger           *ledger.Engine
	PortfolioService *portfolio.Service
	WatchlistService *watchlist.Service
	BackupService    *reliability.BackupService // nil unless backups are enabled

	// Real-time stream
	Hub *stream.Hub

	Scheduler *scheduler.Scheduler
}

// JobInstances keeps the registered jobs so they can be run on demand
type JobInstances struct {
	PriceBroadcast scheduler.Job
	CacheCleanup   scheduler.Job
	WALCheckpoint  scheduler.Job
	Maintenance    scheduler.Job
	Backup         scheduler.Job // nil unless backups are enabled
}

// Close releases the databases. Safe to call on a partially built container.
func (c *Container) Close() {
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.TrackerDB != nil {
		_ = c.TrackerDB.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
}
