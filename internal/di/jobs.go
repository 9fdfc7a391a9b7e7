package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/clientdata"
	"github.com/tradefolio/tracker/internal/config"
	"github.com/tradefolio/tracker/internal/modules/stream"
	"github.com/tradefolio/tracker/internal/reliability"
	"github.com/tradefolio/tracker/internal/scheduler"
)

const (
	cacheCleanupSchedule  = "@hourly"
	walCheckpointSchedule = "0 */15 * * * *"
	maintenanceSchedule   = "0 0 2 * * *"
)

// RegisterJobs creates the background jobs and schedules them. The scheduler is
// stored in the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{
		PriceBroadcast: stream.NewPriceBroadcastJob(container.Hub, container.MarketData, log),
		CacheCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, log),
		WALCheckpoint:  scheduler.NewWALCheckpointJob(log, container.TrackerDB, container.CacheDB),
		Maintenance:    reliability.NewMaintenanceJob(cfg.DataDir, log, container.TrackerDB, container.CacheDB),
	}

	schedules := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.PriceBroadcastSchedule, instances.PriceBroadcast},
		{cacheCleanupSchedule, instances.CacheCleanup},
		{walCheckpointSchedule, instances.WALCheckpoint},
		{maintenanceSchedule, instances.Maintenance},
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		schedules = append(schedules, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Backup.Schedule, instances.Backup})
	}

	for _, s := range schedules {
		if err := sched.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", s.job.Name(), err)
		}
	}

	container.Scheduler = sched
	log.Info().Strs("jobs", sched.Jobs()).Msg("Jobs registered")

	return instances, nil
}
