package clientdata

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// CleanupJob purges expired quote, history, company and search entries from cache.db
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the hourly cache cleanup job
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

// Run purges every table. A failing table does not stop the others; all
// failures are returned together.
func (j *CleanupJob) Run() error {
	var (
		errs    []error
		deleted = zerolog.Dict()
		total   int64
	)

	for _, table := range AllTables {
		n, err := j.repo.DeleteExpired(table)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
			continue
		}
		deleted.Int64(table, n)
		total += n
	}

	if err := errors.Join(errs...); err != nil {
		j.log.Error().Err(err).Msg("Cache cleanup incomplete")
		return err
	}

	if total > 0 {
		j.log.Info().Dict("deleted", deleted).Int64("total", total).Msg("Expired cache entries removed")
	}
	return nil
}
