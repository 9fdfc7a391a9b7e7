package reliability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefolio/tracker/internal/database"
)

func freeSpace(free uint64, err error) func(context.Context, string) (*disk.UsageStat, error) {
	return func(context.Context, string) (*disk.UsageStat, error) {
		if err != nil {
			return nil, err
		}
		return &disk.UsageStat{Free: free}, nil
	}
}

func TestMaintenanceJob(t *testing.T) {
	tracker := database.NewTestDB(t, "tracker")
	cache := database.NewTestDB(t, "cache")

	tests := []struct {
		name    string
		usage   func(context.Context, string) (*disk.UsageStat, error)
		wantErr bool
	}{
		{name: "plenty of space", usage: freeSpace(50*1024*1024*1024, nil)},
		{name: "low but usable", usage: freeSpace(1024*1024*1024, nil)},
		{name: "critically low", usage: freeSpace(100*1024*1024, nil), wantErr: true},
		{name: "usage unavailable", usage: freeSpace(0, errors.New("statfs failed"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewMaintenanceJob(t.TempDir(), zerolog.Nop(), tracker, nil, cache)
			job.usage = tt.usage

			err := job.Run()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMaintenanceJobName(t *testing.T) {
	assert.Equal(t, "database_maintenance", NewMaintenanceJob("", zerolog.Nop()).Name())
}
