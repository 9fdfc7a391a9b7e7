package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/tradefolio/tracker/internal/database"
)

// WALCheckpointJob truncates the WAL of each database so it does not grow unbounded
type WALCheckpointJob struct {
	log       zerolog.Logger
	databases []*database.DB
}

// NewWALCheckpointJob creates a checkpoint job over the given databases; nil entries are skipped
func NewWALCheckpointJob(log zerolog.Logger, databases ...*database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
		databases: databases,
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints every database. Failures are logged and do not stop the others.
func (j *WALCheckpointJob) Run() error {
	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		// busy, log frames, checkpointed frames
		var busy, logFrames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed)
		if err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to checkpoint WAL")
			continue
		}

		if busy != 0 {
			j.log.Debug().Str("database", db.Name()).Msg("WAL checkpoint blocked by readers")
		}
		checked++
	}

	j.log.Debug().Int("databases", checked).Msg("WAL checkpoint completed")
	return nil
}
