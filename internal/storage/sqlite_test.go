package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/samp/internal/models"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestUpsertServer(t *testing.T) {
	repo := testRepo(t)
	now := time.Now().UTC()

	id, err := repo.UpsertServer(models.Server{
		Host:      "198.51.100.7",
		Port:      7777,
		Hostname:  "Test Server",
		Gamemode:  "DM",
		Language:  "en",
		InfoHash:  42,
		FirstSeen: now,
		LastSeen:  now,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	// Same host:port updates in place and keeps the id.
	later := now.Add(time.Minute)
	id2, err := repo.UpsertServer(models.Server{
		Host:        "198.51.100.7",
		Port:        7777,
		Hostname:    "Renamed Server",
		CountryCode: "DE",
		InfoHash:    43,
		FirstSeen:   later,
		LastSeen:    later,
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	got, err := repo.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed Server", got.Hostname)
	assert.Equal(t, "DE", got.CountryCode)
	assert.Equal(t, uint64(43), got.InfoHash)
	assert.Equal(t, now.Unix(), got.FirstSeen.Unix(), "first_seen must survive updates")

	// An empty country code must not erase the known one.
	_, err = repo.UpsertServer(models.Server{
		Host: "198.51.100.7", Port: 7777, FirstSeen: later, LastSeen: later,
	})
	require.NoError(t, err)

	got, err = repo.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	assert.Equal(t, "DE", got.CountryCode)
}

func TestGetServerNotFound(t *testing.T) {
	repo := testRepo(t)

	got, err := repo.GetServer("203.0.113.1", 7777)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshots(t *testing.T) {
	repo := testRepo(t)
	now := time.Now().UTC()

	id, err := repo.UpsertServer(models.Server{
		Host: "198.51.100.7", Port: 7777, FirstSeen: now, LastSeen: now,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AddSnapshot(models.Snapshot{
			ServerID:   id,
			QueriedAt:  now.Add(time.Duration(i) * time.Minute),
			Ping:       25 * time.Millisecond,
			Players:    uint16(i),
			MaxPlayers: 32,
		}))
	}

	snaps, err := repo.GetSnapshots(id, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	// Newest first
	assert.Equal(t, uint16(2), snaps[0].Players)
	assert.Equal(t, 25*time.Millisecond, snaps[0].Ping)

	deleted, err := repo.PruneSnapshotsBefore(now.Add(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	snaps, err = repo.GetSnapshots(id, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestTouchServer(t *testing.T) {
	repo := testRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	id, err := repo.UpsertServer(models.Server{
		Host: "198.51.100.7", Port: 7777, FirstSeen: now, LastSeen: now,
	})
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, repo.TouchServer(id, later))

	got, err := repo.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), got.LastSeen.Unix())
}
