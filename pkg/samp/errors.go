package samp

import "errors"

var (
	// ErrTimeout is returned when no valid response arrived after exhausting
	// all send attempts.
	ErrTimeout = errors.New("no response from server")

	// ErrMalformed is returned when a response passed header validation but
	// its payload does not match the declared layout, for example a length
	// prefix pointing past the end of the datagram. Unlike a timeout this is
	// not retried: it indicates a protocol or version mismatch rather than
	// transient packet loss.
	ErrMalformed = errors.New("malformed response")

	// ErrMissingPassword is returned by RCON when no password has been
	// configured on the client. It is raised before any network I/O.
	ErrMissingPassword = errors.New("RCON password is not set")

	// ErrInvalidPassword is returned when the server answered an RCON request
	// with its fixed invalid-password message.
	ErrInvalidPassword = errors.New("invalid RCON password")
)
