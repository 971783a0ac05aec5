// Package models defines the data structures shared between the monitor and
// the database layer.
package models

import "time"

// Server is the identity and latest known state of a monitored game server.
type Server struct {
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Host        string    `json:"host"`
	CountryCode string    `json:"country_code"`
	Hostname    string    `json:"hostname"`
	Gamemode    string    `json:"gamemode"`
	Language    string    `json:"language"`
	Port        int       `json:"port"`
	ID          int64     `json:"id"`
	InfoHash    uint64    `json:"-"`
	OpenMP      bool      `json:"open_mp"`
	Password    bool      `json:"password"`
}

// Snapshot is one poll result in the time series for a server.
type Snapshot struct {
	QueriedAt  time.Time     `json:"queried_at"`
	Ping       time.Duration `json:"ping"`
	ServerID   int64         `json:"server_id"`
	Players    uint16        `json:"players"`
	MaxPlayers uint16        `json:"max_players"`
}
