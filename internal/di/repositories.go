package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/clientdata"
	"github.com/tradefolio/tracker/internal/modules/users"
	"github.com/tradefolio/tracker/internal/modules/watchlist"
)

// InitializeRepositories creates the repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.UserRepo = users.NewRepository(container.TrackerDB.Conn(), log)
	container.WatchlistRepo = watchlist.NewRepository(container.TrackerDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	return nil
}
