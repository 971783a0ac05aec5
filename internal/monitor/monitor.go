// Package monitor periodically polls one game server and records the results
// as snapshots in the database.
package monitor

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/samp/internal/geoip"
	"github.com/woozymasta/samp/internal/models"
	"github.com/woozymasta/samp/internal/storage"
	"github.com/woozymasta/samp/pkg/samp"
	"golang.org/x/time/rate"
)

// Querier is the subset of the query client the monitor depends on.
type Querier interface {
	Ping(ctx context.Context) (time.Duration, error)
	Info(ctx context.Context) (*samp.Info, error)
	IsOMP(ctx context.Context) (bool, error)
	Addr() *net.UDPAddr
}

// Monitor polls a single server on a fixed interval. Identity fields are
// hashed so an unchanged server only bumps last_seen instead of rewriting
// the row on every poll.
type Monitor struct {
	client   Querier
	store    *storage.Repository
	geo      *geoip.Provider // nil when country lookup is disabled
	interval time.Duration

	serverID int64
	lastHash uint64
	openMP   bool
	probed   bool
}

// New creates a Monitor polling client's server every interval.
func New(client Querier, store *storage.Repository, geo *geoip.Provider, interval time.Duration) *Monitor {
	return &Monitor{
		client:   client,
		store:    store,
		geo:      geo,
		interval: interval,
	}
}

// Run polls until the context is canceled. Cancellation is a clean exit.
func (m *Monitor) Run(ctx context.Context) error {
	addr := m.client.Addr()

	// Resume identity from a previous run so an unchanged server does not
	// trigger a fresh upsert on the first poll.
	if known, err := m.store.GetServer(addr.IP.String(), addr.Port); err == nil && known != nil {
		m.serverID = known.ID
		m.lastHash = known.InfoHash
		m.openMP = known.OpenMP
		m.probed = true
	}

	limiter := newIntervalLimiter(m.interval)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		m.poll(ctx)
	}
}

// newIntervalLimiter paces polls: the first one fires immediately, every
// following one waits out the interval.
func newIntervalLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = time.Minute
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// poll performs one ping + info exchange and persists the outcome. Failures
// are logged and skipped; the next tick retries.
func (m *Monitor) poll(ctx context.Context) {
	addr := m.client.Addr()
	logCtx := log.With().Str("server", addr.String()).Logger()
	now := time.Now().UTC()

	ping, err := m.client.Ping(ctx)
	if err != nil {
		logCtx.Warn().Err(err).Msg("Server did not answer ping")
		return
	}

	info, err := m.client.Info(ctx)
	if err != nil {
		logCtx.Warn().Err(err).Msg("Info query failed")
		return
	}

	hash := infoHash(info)
	if m.serverID == 0 || hash != m.lastHash {
		if !m.probed {
			// The probe costs the full retry budget against SA-MP servers,
			// so run it once and keep the answer.
			m.openMP, _ = m.client.IsOMP(ctx)
			m.probed = true
		}

		var country string
		if m.geo != nil {
			country = m.geo.CountryCode(addr.IP)
		}

		id, err := m.store.UpsertServer(models.Server{
			Host:        addr.IP.String(),
			Port:        addr.Port,
			CountryCode: country,
			Hostname:    info.Hostname,
			Gamemode:    info.Gamemode,
			Language:    info.Language,
			OpenMP:      m.openMP,
			Password:    info.Password,
			InfoHash:    hash,
			FirstSeen:   now,
			LastSeen:    now,
		})
		if err != nil {
			logCtx.Error().Err(err).Msg("Failed to upsert server")
			return
		}

		m.serverID = id
		m.lastHash = hash
	} else if err := m.store.TouchServer(m.serverID, now); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update last seen")
	}

	if err := m.store.AddSnapshot(models.Snapshot{
		ServerID:   m.serverID,
		QueriedAt:  now,
		Ping:       ping,
		Players:    info.Players,
		MaxPlayers: info.MaxPlayers,
	}); err != nil {
		logCtx.Error().Err(err).Msg("Failed to record snapshot")
		return
	}

	logCtx.Debug().
		Dur("ping", ping).
		Uint16("players", info.Players).
		Msg("Snapshot recorded")
}

// infoHash digests the fields that identify a server's advertised state.
// Player counts are excluded: they belong to the snapshot series.
func infoHash(info *samp.Info) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(info.Hostname)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(info.Gamemode)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(info.Language)
	flags := byte(0)
	if info.Password {
		flags = 1
	}
	_, _ = d.Write([]byte{0, flags, byte(info.MaxPlayers), byte(info.MaxPlayers >> 8)})

	return d.Sum64()
}
