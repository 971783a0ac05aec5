package samp

// Info describes a server as reported by the info query. Textual fields are
// decoded from the server's raw bytes using the configured encoding detector.
type Info struct {
	// Hostname is the server name shown in the browser list
	Hostname string

	// Gamemode currently running on the server
	Gamemode string

	// Language advertised by the server
	Language string

	// Players currently connected
	Players uint16

	// MaxPlayers the server accepts
	MaxPlayers uint16

	// Password is true when the server requires a join password
	Password bool
}

// Rule is a single server configuration entry. Rules are returned in the
// order the server sent them, duplicates included.
type Rule struct {
	Name  string
	Value string
}

// Player is one entry of the basic player list.
type Player struct {
	Name  string
	Score int32
}

// DetailedPlayer is one entry of the detailed player list, which also
// carries the player's network ping.
type DetailedPlayer struct {
	Name  string
	Score int32
	Ping  uint32
}
