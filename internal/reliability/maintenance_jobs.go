package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tradefolio/tracker/internal/database"
)

const (
	criticalFreeBytes = 500 * 1024 * 1024
	lowFreeBytes      = 5 * 1024 * 1024 * 1024
	maintenanceBudget = 10 * time.Minute
)

// MaintenanceJob checks database integrity and free disk space, and compacts
// databases whose profile allows it
type MaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger

	usage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewMaintenanceJob creates the daily maintenance job; nil databases are skipped
func NewMaintenanceJob(dataDir string, log zerolog.Logger, databases ...*database.DB) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "database_maintenance").Logger(),
		usage:     disk.UsageWithContext,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run checks every database, then disk space. A corrupt database or critically low
// disk space fails the run; compaction errors are only logged.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceBudget)
	defer cancel()

	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
			return err
		}

		if db.Profile() == database.ProfileCache {
			j.vacuum(ctx, db)
		}

		if _, err := db.Conn().ExecContext(ctx, "PRAGMA optimize"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("PRAGMA optimize failed")
		}
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Database maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace(ctx context.Context) error {
	usage, err := j.usage(ctx, j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read disk usage")
		return nil
	}

	availableGB := float64(usage.Free) / 1e9
	switch {
	case usage.Free < criticalFreeBytes:
		j.log.Error().Float64("available_gb", availableGB).Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	case usage.Free < lowFreeBytes:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")
	}

	return nil
}

func (j *MaintenanceJob) vacuum(ctx context.Context, db *database.DB) {
	before, err := db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to read database stats")
		return
	}

	if _, err := db.Conn().ExecContext(ctx, "VACUUM"); err != nil {
		j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
		return
	}

	after, err := db.GetStats()
	if err != nil {
		return
	}

	j.log.Info().
		Str("database", db.Name()).
		Int64("pages_before", before.PageCount).
		Int64("pages_after", after.PageCount).
		Msg("VACUUM completed")
}
