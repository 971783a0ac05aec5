// Package samp implements the UDP query and RCON protocol of SA-MP and
// open.mp game servers: server info, rules, player lists, ping and remote
// console commands.
//
// The protocol is a stateless request/response exchange over unreliable
// datagrams. Every request is prefixed with the magic signature and the
// destination address and port, which the server echoes back; responses that
// do not echo the expected header are dropped as strays. A Client owns a
// single bound socket and must not run two operations concurrently; use one
// Client per goroutine or serialize externally.
package samp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Default client tuning, overridable through the exported Client fields.
const (
	// DefaultTimeout is the wait per request attempt.
	DefaultTimeout = 2 * time.Second

	// DefaultAttempts is the total number of sends before giving up.
	DefaultAttempts = 3

	// DefaultSilenceWindow is the inter-datagram timeout that terminates RCON
	// collection. The protocol has no end-of-response marker, so this window
	// is a heuristic: on very slow links it may truncate legitimate output.
	DefaultSilenceWindow = 500 * time.Millisecond

	// DefaultBufferSize is the receive buffer for a single response datagram.
	DefaultBufferSize = 4096
)

// errAttemptTimeout marks a single expired wait inside the retry loop. It is
// internal; callers only ever see ErrTimeout.
var errAttemptTimeout = errors.New("attempt timed out")

// invalidPasswordReply is the fixed single-line answer servers send to an
// RCON request carrying a wrong password.
const invalidPasswordReply = "Invalid RCON password."

// Client queries a single SA-MP or open.mp server over UDP.
type Client struct {
	conn   *net.UDPConn
	addr   *net.UDPAddr
	prefix []byte // magic + echoed IPv4 + port, shared by every packet

	// Detector resolves the text encoding of raw response strings.
	// Defaults to the chardet-backed detector.
	Detector Detector

	// RCONPassword authorizes RCON commands. RCON fails with
	// ErrMissingPassword while it is empty.
	RCONPassword string

	// Logger receives debug output for retries and dropped strays.
	// Disabled by default.
	Logger zerolog.Logger

	// Timeout per request attempt
	Timeout time.Duration

	// SilenceWindow terminates RCON response collection
	SilenceWindow time.Duration

	// Attempts total request sends before ErrTimeout
	Attempts int

	// BufferSize for incoming datagrams
	BufferSize uint16
}

// New resolves host to an IPv4 address, binds a UDP socket to the
// destination and returns a Client with default tuning.
func New(host string, port int) (*Client, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s:%d: %w", host, port, err)
	}

	ip := addr.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("%s does not resolve to an IPv4 address", host)
	}

	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	prefix := make([]byte, 0, headerSize-1)
	prefix = append(prefix, queryMagic...)
	prefix = append(prefix, ip...)
	prefix = binary.LittleEndian.AppendUint16(prefix, uint16(addr.Port))

	return &Client{
		conn:          conn,
		addr:          addr,
		prefix:        prefix,
		Detector:      NewDetector(),
		Logger:        zerolog.Nop(),
		Timeout:       DefaultTimeout,
		SilenceWindow: DefaultSilenceWindow,
		Attempts:      DefaultAttempts,
		BufferSize:    DefaultBufferSize,
	}, nil
}

// Close releases the underlying socket. The Client is unusable afterwards.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Addr returns the resolved destination address.
func (c *Client) Addr() *net.UDPAddr {
	return c.addr
}

// Ping measures the round trip to the server using the echo query.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, rand.Uint32())

	start := time.Now()
	if _, err := c.request(ctx, OpcodePing, payload); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

// IsOMP probes whether the server is an open.mp implementation. SA-MP
// servers never answer the probe, so a negative result costs the full
// timeout and retry budget.
func (c *Client) IsOMP(ctx context.Context) (bool, error) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, rand.Uint32())

	_, err := c.request(ctx, OpcodeOMP, payload)
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Info requests the server summary: name, gamemode, language, player counts
// and the password flag.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	payload, err := c.request(ctx, OpcodeInfo, nil)
	if err != nil {
		return nil, err
	}

	raw, err := decodeInfo(payload)
	if err != nil {
		return nil, err
	}

	return &Info{
		Hostname:   decodeText(c.Detector, raw.hostname),
		Gamemode:   decodeText(c.Detector, raw.gamemode),
		Language:   decodeText(c.Detector, raw.language),
		Players:    raw.players,
		MaxPlayers: raw.maxPlayers,
		Password:   raw.password,
	}, nil
}

// Rules requests the server rule list in server order, duplicates preserved.
func (c *Client) Rules(ctx context.Context) ([]Rule, error) {
	payload, err := c.request(ctx, OpcodeRules, nil)
	if err != nil {
		return nil, err
	}

	raw, err := decodeRules(payload)
	if err != nil {
		return nil, err
	}

	rules := make([]Rule, len(raw))
	for i, r := range raw {
		rules[i] = Rule{
			Name:  decodeText(c.Detector, r.name),
			Value: decodeText(c.Detector, r.value),
		}
	}

	return rules, nil
}

// Players requests the basic player list. Servers stop answering this query
// beyond roughly a hundred connected players; the call then fails with
// ErrTimeout.
func (c *Client) Players(ctx context.Context) ([]Player, error) {
	payload, err := c.request(ctx, OpcodePlayers, nil)
	if err != nil {
		return nil, err
	}

	raw, err := decodePlayers(payload, false)
	if err != nil {
		return nil, err
	}

	players := make([]Player, len(raw))
	for i, p := range raw {
		players[i] = Player{
			Name:  decodeText(c.Detector, p.name),
			Score: p.score,
		}
	}

	return players, nil
}

// PlayersDetailed requests the detailed player list, which includes pings.
func (c *Client) PlayersDetailed(ctx context.Context) ([]DetailedPlayer, error) {
	payload, err := c.request(ctx, OpcodePlayersDetailed, nil)
	if err != nil {
		return nil, err
	}

	raw, err := decodePlayers(payload, true)
	if err != nil {
		return nil, err
	}

	players := make([]DetailedPlayer, len(raw))
	for i, p := range raw {
		players[i] = DetailedPlayer{
			Name:  decodeText(c.Detector, p.name),
			Score: p.score,
			Ping:  p.ping,
		}
	}

	return players, nil
}

// request sends one encoded query and waits for a matching response payload,
// re-sending the identical datagram on timeout up to c.Attempts total sends.
// Queries are idempotent, so duplicate delivery is harmless.
func (c *Client) request(ctx context.Context, opcode byte, payload []byte) ([]byte, error) {
	packet := buildRequest(c.prefix, opcode, payload)
	buf := make([]byte, c.bufferSize())

	for attempt := 1; attempt <= c.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := c.conn.Write(packet); err != nil {
			return nil, fmt.Errorf("send query: %w", err)
		}

		resp, err := c.await(ctx, opcode, payload, buf, time.Now().Add(c.timeout()))
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, errAttemptTimeout) {
			return nil, err
		}

		c.Logger.Debug().
			Str("opcode", string(opcode)).
			Int("attempt", attempt).
			Msg("Query attempt timed out")
	}

	return nil, ErrTimeout
}

// await reads datagrams until one matches the expected response header or
// the deadline passes. Datagrams failing header validation are dropped and
// the wait continues within the same time budget, so noise from an earlier
// exchange cannot be taken for the current answer. The returned slice is a
// copy of the response payload past the header.
func (c *Client) await(ctx context.Context, opcode byte, echo []byte, buf []byte, deadline time.Time) ([]byte, error) {
	// Wake the blocked read if the caller cancels mid-wait.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		d := deadline
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
			d = ctxDeadline
		}
		if err := c.conn.SetReadDeadline(d); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
		// Re-check after arming the deadline so a cancellation racing the
		// AfterFunc above cannot leave the read blocked on a fresh deadline.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := c.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, errAttemptTimeout
			}

			return nil, fmt.Errorf("receive: %w", err)
		}

		if !matchResponse(c.prefix, buf[:n], opcode, echo) {
			c.Logger.Trace().
				Str("opcode", string(opcode)).
				Int("size", n).
				Msg("Dropping stray datagram")
			continue
		}

		payload := make([]byte, n-headerSize)
		copy(payload, buf[headerSize:n])

		return payload, nil
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) silenceWindow() time.Duration {
	if c.SilenceWindow > 0 {
		return c.SilenceWindow
	}
	return DefaultSilenceWindow
}

func (c *Client) attempts() int {
	if c.Attempts > 0 {
		return c.Attempts
	}
	return DefaultAttempts
}

func (c *Client) bufferSize() int {
	if c.BufferSize > 0 {
		return int(c.BufferSize)
	}
	return DefaultBufferSize
}
