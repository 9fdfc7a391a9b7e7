package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradefolio/tracker/internal/database"
	"github.com/tradefolio/tracker/internal/events"
)

type memoryUploader struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newMemoryUploader() *memoryUploader {
	return &memoryUploader{objects: make(map[string][]byte)}
}

func (u *memoryUploader) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	if u.uploadErr != nil {
		return u.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	return nil
}

func (u *memoryUploader) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []ObjectInfo
	for key, data := range u.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (u *memoryUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func seedTrackerDB(t *testing.T) *database.DB {
	t.Helper()
	db := database.NewTestDB(t, "tracker")
	_, err := db.Conn().Exec(
		"INSERT INTO users (email, username, hashed_password, cash_balance, created_at) VALUES (?, ?, 'x', '100', ?)",
		"a@example.com", "alice", time.Now().Unix(),
	)
	require.NoError(t, err)
	return db
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestCreateAndUpload(t *testing.T) {
	db := seedTrackerDB(t)
	uploader := newMemoryUploader()

	bus := events.NewBus(zerolog.Nop())
	var emitted []*events.Event
	bus.Subscribe(events.BackupCompleted, func(e *events.Event) { emitted = append(emitted, e) })

	svc := NewBackupService(uploader, events.NewManager(bus, zerolog.Nop()), t.TempDir(), zerolog.Nop(), db)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

	result, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tracker-backup-2024-03-15-103000.tar.gz", result.Key)
	assert.True(t, strings.HasPrefix(result.Checksum, "sha256:"))

	data, ok := uploader.objects[result.Key]
	require.True(t, ok)
	assert.Equal(t, int64(len(data)), result.SizeBytes)

	files := readArchive(t, data)
	require.Contains(t, files, "tracker.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 1)
	assert.Equal(t, "tracker", metadata.Databases[0].Name)
	assert.Equal(t, int64(len(files["tracker.db"])), metadata.Databases[0].SizeBytes)
	assert.True(t, strings.HasPrefix(metadata.Databases[0].Checksum, "sha256:"))

	require.Len(t, emitted, 1)
	assert.Equal(t, result.Key, emitted[0].Data["key"])
}

func TestCreateAndUploadCleansStaging(t *testing.T) {
	db := seedTrackerDB(t)
	staging := t.TempDir()
	uploader := newMemoryUploader()
	uploader.uploadErr = errors.New("bucket unreachable")

	svc := NewBackupService(uploader, nil, staging, zerolog.Nop(), db)

	_, err := svc.CreateAndUpload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func putBackup(u *memoryUploader, ts time.Time) string {
	key := "tracker-backup-" + ts.Format("2006-01-02-150405") + ".tar.gz"
	u.objects[key] = []byte("x")
	return key
}

func TestListBackups(t *testing.T) {
	uploader := newMemoryUploader()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	older := putBackup(uploader, now.Add(-48*time.Hour))
	newer := putBackup(uploader, now.Add(-2*time.Hour))
	uploader.objects["tracker-backup-garbage.tar.gz"] = []byte("x")

	svc := NewBackupService(uploader, nil, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, newer, backups[0].Filename)
	assert.Equal(t, int64(2), backups[0].AgeHours)
	assert.Equal(t, older, backups[1].Filename)
	assert.Equal(t, int64(48), backups[1].AgeHours)
}

func TestRotateOldBackups(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("keeps newest three regardless of age", func(t *testing.T) {
		uploader := newMemoryUploader()
		for i := 1; i <= 3; i++ {
			putBackup(uploader, now.AddDate(0, 0, -100*i))
		}
		svc := NewBackupService(uploader, nil, t.TempDir(), zerolog.Nop())
		svc.now = func() time.Time { return now }

		deleted, err := svc.RotateOldBackups(context.Background(), 30)
		require.NoError(t, err)
		assert.Zero(t, deleted)
		assert.Len(t, uploader.objects, 3)
	})

	t.Run("deletes expired beyond the minimum", func(t *testing.T) {
		uploader := newMemoryUploader()
		putBackup(uploader, now.AddDate(0, 0, -1))
		putBackup(uploader, now.AddDate(0, 0, -2))
		putBackup(uploader, now.AddDate(0, 0, -3))
		recent := putBackup(uploader, now.AddDate(0, 0, -4))
		old1 := putBackup(uploader, now.AddDate(0, 0, -40))
		old2 := putBackup(uploader, now.AddDate(0, 0, -50))

		svc := NewBackupService(uploader, nil, t.TempDir(), zerolog.Nop())
		svc.now = func() time.Time { return now }

		deleted, err := svc.RotateOldBackups(context.Background(), 30)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		assert.ElementsMatch(t, []string{old1, old2}, uploader.deleted)
		assert.Contains(t, uploader.objects, recent)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		uploader := newMemoryUploader()
		for i := 1; i <= 5; i++ {
			putBackup(uploader, now.AddDate(0, 0, -100*i))
		}
		svc := NewBackupService(uploader, nil, t.TempDir(), zerolog.Nop())
		svc.now = func() time.Time { return now }

		deleted, err := svc.RotateOldBackups(context.Background(), 0)
		require.NoError(t, err)
		assert.Zero(t, deleted)
		assert.Len(t, uploader.objects, 5)
	})
}

func TestBackupJob(t *testing.T) {
	db := seedTrackerDB(t)
	uploader := newMemoryUploader()
	svc := NewBackupService(uploader, nil, t.TempDir(), zerolog.Nop(), db)

	job := NewBackupJob(svc, 30, zerolog.Nop())
	assert.Equal(t, "database_backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, uploader.objects, 1)
}

func TestBackupJobReportsFailure(t *testing.T) {
	db := seedTrackerDB(t)
	uploader := newMemoryUploader()
	uploader.uploadErr = errors.New("access denied")

	bus := events.NewBus(zerolog.Nop())
	var failures []*events.Event
	bus.Subscribe(events.ErrorOccurred, func(e *events.Event) { failures = append(failures, e) })

	svc := NewBackupService(uploader, events.NewManager(bus, zerolog.Nop()), t.TempDir(), zerolog.Nop(), db)

	err := NewBackupJob(svc, 30, zerolog.Nop()).Run()
	require.Error(t, err)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Data["error"], "access denied")
}
