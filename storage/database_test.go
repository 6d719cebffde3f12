package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "runs.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndRecentRuns(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.SaveOutcome("alice@x.com", true, "authenticated", 3*time.Second))
	require.NoError(t, db.SaveOutcome("bob@x.com", false, "challenge timed out", 40*time.Second))

	records, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	assert.Equal(t, "bob@x.com", records[0].Email)
	assert.False(t, records[0].Success)
	assert.Equal(t, "challenge timed out", records[0].Message)
	assert.Equal(t, int64(40000), records[0].DurationMS)

	assert.Equal(t, "alice@x.com", records[1].Email)
	assert.True(t, records[1].Success)
}

func TestRecentRunsHonorsLimit(t *testing.T) {
	db := newTestDatabase(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveOutcome("alice@x.com", true, "authenticated", time.Second))
	}

	records, err := db.RecentRuns(3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRecentRunsEmpty(t *testing.T) {
	db := newTestDatabase(t)

	records, err := db.RecentRuns(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDailyStats(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.SaveOutcome("alice@x.com", true, "authenticated", time.Second))
	require.NoError(t, db.SaveOutcome("bob@x.com", false, "wrong code", time.Second))
	require.NoError(t, db.SaveOutcome("carol@x.com", true, "authenticated", time.Second))

	stats, err := db.DailyStats(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 3, stats["runs"])
	assert.Equal(t, 2, stats["successes"])
	assert.Equal(t, 1, stats["failures"])
}

func TestDailyStatsEmptyDay(t *testing.T) {
	db := newTestDatabase(t)

	stats, err := db.DailyStats(time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 0, stats["runs"])
}
