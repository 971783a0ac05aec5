// Package storage handles database connections, schema migrations, and data
// operations using SQLite.
package storage

import (
	"database/sql"
	"time"

	"github.com/woozymasta/samp/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters,
// and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertServer inserts a new server or updates an existing one identified by
// host and port, returning the row id. Textual fields and the info hash are
// refreshed on every call; first_seen is kept from the original insert.
func (r *Repository) UpsertServer(s models.Server) (int64, error) {
	query := `
	INSERT INTO servers (
		host, port, country_code, hostname, gamemode, language,
		open_mp, password, info_hash, first_seen, last_seen
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(host, port) DO UPDATE SET
		last_seen = excluded.last_seen,
		hostname  = excluded.hostname,
		gamemode  = excluded.gamemode,
		language  = excluded.language,
		open_mp   = excluded.open_mp,
		password  = excluded.password,
		info_hash = excluded.info_hash,

		-- Keep the known country if the new record has none
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRow(query,
		s.Host, s.Port, s.CountryCode, s.Hostname, s.Gamemode, s.Language,
		s.OpenMP, s.Password, int64(s.InfoHash), s.FirstSeen, s.LastSeen,
	).Scan(&id)

	return id, err
}

// TouchServer bumps last_seen for a server whose info has not changed since
// the previous poll.
func (r *Repository) TouchServer(id int64, seen time.Time) error {
	_, err := r.db.Exec(`UPDATE servers SET last_seen = ? WHERE id = ?`, seen, id)
	return err
}

// GetServer retrieves a server by its host and port, or nil when unknown.
func (r *Repository) GetServer(host string, port int) (*models.Server, error) {
	row := r.db.QueryRow(`
		SELECT id, host, port, country_code, hostname, gamemode, language,
		       open_mp, password, info_hash, first_seen, last_seen
		FROM servers
		WHERE host = ? AND port = ?
	`, host, port)

	var s models.Server
	var hash int64
	err := row.Scan(
		&s.ID, &s.Host, &s.Port, &s.CountryCode, &s.Hostname, &s.Gamemode, &s.Language,
		&s.OpenMP, &s.Password, &hash, &s.FirstSeen, &s.LastSeen,
	)

	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	s.InfoHash = uint64(hash)
	return &s, nil
}

// AddSnapshot appends one poll result to the server's time series.
func (r *Repository) AddSnapshot(snap models.Snapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO snapshots (server_id, queried_at, ping_us, players, max_players)
		VALUES (?, ?, ?, ?, ?)
	`, snap.ServerID, snap.QueriedAt, snap.Ping.Microseconds(), snap.Players, snap.MaxPlayers)

	return err
}

// GetSnapshots retrieves up to limit most recent snapshots for a server,
// newest first.
func (r *Repository) GetSnapshots(serverID int64, limit int) ([]models.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT server_id, queried_at, ping_us, players, max_players
		FROM snapshots
		WHERE server_id = ?
		ORDER BY queried_at DESC
		LIMIT ?
	`, serverID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var snaps []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		var pingUS int64
		if err := rows.Scan(&s.ServerID, &s.QueriedAt, &pingUS, &s.Players, &s.MaxPlayers); err != nil {
			continue
		}
		s.Ping = time.Duration(pingUS) * time.Microsecond
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}

// PruneSnapshotsBefore removes snapshots older than the cutoff and returns
// the number of deleted rows.
func (r *Repository) PruneSnapshotsBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM snapshots WHERE queried_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
