package watchlist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/events"
)

// Service manages watchlists and announces changes on the event bus
type Service struct {
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a watchlist service. eventManager may be nil.
func NewService(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("service", "watchlist").Logger(),
		now:    time.Now,
	}
}

// Add watches a symbol for userID
func (s *Service) Add(ctx context.Context, userID int64, in AddInput) (*Item, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	item, err := s.repo.Create(ctx, Item{
		UserID:      userID,
		Symbol:      symbol,
		TargetPrice: in.TargetPrice,
		Notes:       strings.TrimSpace(in.Notes),
		AddedAt:     s.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", userID).Str("symbol", symbol).Msg("Symbol added to watchlist")
	s.emit(userID, symbol, "added")
	return item, nil
}

// List returns the watchlist of userID, newest first
func (s *Service) List(ctx context.Context, userID int64) ([]Item, error) {
	return s.repo.List(ctx, userID)
}

// Remove deletes an item of userID
func (s *Service) Remove(ctx context.Context, userID, id int64) error {
	item, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.log.Info().Int64("user_id", userID).Str("symbol", item.Symbol).Msg("Symbol removed from watchlist")
	s.emit(userID, item.Symbol, "removed")
	return nil
}

func (s *Service) emit(userID int64, symbol, action string) {
	if s.events == nil {
		return
	}
	s.events.EmitTyped("watchlist", &events.WatchlistChangedData{
		UserID: userID,
		Symbol: symbol,
		Action: action,
	})
}
