package monitor

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/samp/internal/storage"
	"github.com/woozymasta/samp/pkg/samp"
)

// stubQuerier answers like a reachable server without any network.
type stubQuerier struct {
	info     samp.Info
	ompCalls int
	pingErr  error
}

func (s *stubQuerier) Ping(context.Context) (time.Duration, error) {
	return 25 * time.Millisecond, s.pingErr
}

func (s *stubQuerier) Info(context.Context) (*samp.Info, error) {
	info := s.info
	return &info, nil
}

func (s *stubQuerier) IsOMP(context.Context) (bool, error) {
	s.ompCalls++
	return true, nil
}

func (s *stubQuerier) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(198, 51, 100, 7), Port: 7777}
}

func testStore(t *testing.T) *storage.Repository {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestPollRecordsSnapshot(t *testing.T) {
	store := testStore(t)
	stub := &stubQuerier{info: samp.Info{
		Hostname: "Test Server", Gamemode: "DM", Language: "en",
		Players: 5, MaxPlayers: 32,
	}}

	m := New(stub, store, nil, time.Minute)
	m.poll(context.Background())

	server, err := store.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, "Test Server", server.Hostname)
	assert.True(t, server.OpenMP)

	snaps, err := store.GetSnapshots(server.ID, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, uint16(5), snaps[0].Players)
	assert.Equal(t, 25*time.Millisecond, snaps[0].Ping)
}

func TestPollDeduplicatesUnchangedInfo(t *testing.T) {
	store := testStore(t)
	stub := &stubQuerier{info: samp.Info{
		Hostname: "Test Server", Gamemode: "DM", Language: "en",
		Players: 5, MaxPlayers: 32,
	}}

	m := New(stub, store, nil, time.Minute)
	m.poll(context.Background())

	firstID := m.serverID
	firstHash := m.lastHash

	// Player count changes do not touch the identity hash.
	stub.info.Players = 10
	m.poll(context.Background())

	assert.Equal(t, firstID, m.serverID)
	assert.Equal(t, firstHash, m.lastHash)
	assert.Equal(t, 1, stub.ompCalls, "the open.mp probe must run once")

	snaps, err := store.GetSnapshots(firstID, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	// A renamed server gets a fresh upsert under the same row.
	stub.info.Hostname = "Renamed"
	m.poll(context.Background())

	assert.Equal(t, firstID, m.serverID)
	assert.NotEqual(t, firstHash, m.lastHash)

	server, err := store.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", server.Hostname)
}

func TestPollSkipsUnreachableServer(t *testing.T) {
	store := testStore(t)
	stub := &stubQuerier{pingErr: samp.ErrTimeout}

	m := New(stub, store, nil, time.Minute)
	m.poll(context.Background())

	server, err := store.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	assert.Nil(t, server, "an unreachable server must not be recorded")
}

func TestRunStopsOnCancel(t *testing.T) {
	store := testStore(t)
	stub := &stubQuerier{info: samp.Info{Hostname: "Test Server", MaxPlayers: 32}}

	m := New(stub, store, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	server, err := store.GetServer("198.51.100.7", 7777)
	require.NoError(t, err)
	require.NotNil(t, server)

	snaps, err := store.GetSnapshots(server.ID, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, snaps)
}
