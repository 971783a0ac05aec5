package samp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// queryMagic is the fixed signature opening every request and response datagram.
const queryMagic = "SAMP"

// headerSize is the length of the common packet header:
// magic(4) + ipv4(4) + port(2,LE) + opcode(1).
const headerSize = 11

// Query opcodes understood by SA-MP and open.mp servers.
const (
	OpcodeInfo            byte = 'i'
	OpcodeRules           byte = 'r'
	OpcodePlayers         byte = 'c'
	OpcodePlayersDetailed byte = 'd'
	OpcodePing            byte = 'p'
	OpcodeOMP             byte = 'o'
	OpcodeRCON            byte = 'x'
)

// buildRequest assembles a request datagram from the precomputed header
// prefix (magic + echoed address and port), the opcode and an optional
// opcode-specific payload.
func buildRequest(prefix []byte, opcode byte, payload []byte) []byte {
	packet := make([]byte, 0, len(prefix)+1+len(payload))
	packet = append(packet, prefix...)
	packet = append(packet, opcode)
	packet = append(packet, payload...)

	return packet
}

// rconPayload encodes the RCON request body: each of password and command is
// written as a 2-byte little-endian length followed by its raw bytes.
func rconPayload(password, command string) []byte {
	payload := make([]byte, 0, 4+len(password)+len(command))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(password)))
	payload = append(payload, password...)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(command)))
	payload = append(payload, command...)

	return payload
}

// matchResponse reports whether a received datagram answers the request
// identified by prefix and opcode. The server echoes the magic, destination
// address, port and opcode of the request; anything else is a stray datagram
// from an unrelated exchange and must be dropped. For echo-style queries
// (ping and the open.mp probe) the payload must match the sent bytes too.
func matchResponse(prefix []byte, data []byte, opcode byte, echo []byte) bool {
	if len(data) < headerSize {
		return false
	}
	if !bytes.Equal(data[:headerSize-1], prefix) {
		return false
	}
	if data[headerSize-1] != opcode {
		return false
	}
	if opcode == OpcodePing || opcode == OpcodeOMP {
		return bytes.Equal(data[headerSize:], echo)
	}

	return true
}

// rawInfo holds the decoded info response with textual fields still as raw
// bytes; encoding detection happens at the client layer.
type rawInfo struct {
	hostname   []byte
	gamemode   []byte
	language   []byte
	players    uint16
	maxPlayers uint16
	password   bool
}

type rawRule struct {
	name  []byte
	value []byte
}

type rawPlayer struct {
	name  []byte
	score int32
	ping  uint32
}

// decodeInfo parses an info response payload:
// passwordFlag(1) | players(2,LE) | maxPlayers(2,LE) |
// hostnameLen(4,LE)|hostname | gamemodeLen(4,LE)|gamemode | languageLen(4,LE)|language.
func decodeInfo(payload []byte) (*rawInfo, error) {
	r := reader{buf: payload}
	info := &rawInfo{}

	flag, err := r.u8()
	if err != nil {
		return nil, err
	}
	info.password = flag != 0

	if info.players, err = r.u16(); err != nil {
		return nil, err
	}
	if info.maxPlayers, err = r.u16(); err != nil {
		return nil, err
	}

	if info.hostname, err = r.longString(); err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	if info.gamemode, err = r.longString(); err != nil {
		return nil, fmt.Errorf("gamemode: %w", err)
	}
	if info.language, err = r.longString(); err != nil {
		return nil, fmt.Errorf("language: %w", err)
	}

	return info, nil
}

// decodeRules parses a rules response payload: ruleCount(2,LE) followed by
// {nameLen(1)|name | valueLen(1)|value} pairs. Order and duplicates are
// preserved as sent by the server.
func decodeRules(payload []byte) ([]rawRule, error) {
	r := reader{buf: payload}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	rules := make([]rawRule, 0, count)
	for i := 0; i < int(count); i++ {
		var rule rawRule
		if rule.name, err = r.shortString(); err != nil {
			return nil, fmt.Errorf("rule %d name: %w", i, err)
		}
		if rule.value, err = r.shortString(); err != nil {
			return nil, fmt.Errorf("rule %d value: %w", i, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// decodePlayers parses a players response payload: count(2,LE) followed by
// {nameLen(1)|name | score(4,LE,int32)} entries, each carrying a trailing
// ping(4,LE) in the detailed variant.
func decodePlayers(payload []byte, detailed bool) ([]rawPlayer, error) {
	r := reader{buf: payload}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	players := make([]rawPlayer, 0, count)
	for i := 0; i < int(count); i++ {
		var player rawPlayer
		if player.name, err = r.shortString(); err != nil {
			return nil, fmt.Errorf("player %d name: %w", i, err)
		}
		if player.score, err = r.i32(); err != nil {
			return nil, fmt.Errorf("player %d score: %w", i, err)
		}
		if detailed {
			if player.ping, err = r.u32(); err != nil {
				return nil, fmt.Errorf("player %d ping: %w", i, err)
			}
		}
		players = append(players, player)
	}

	return players, nil
}

// decodeRCONLine parses one RCON response payload: lineLen(2,LE) | line.
// A zero-length line is valid.
func decodeRCONLine(payload []byte) ([]byte, error) {
	r := reader{buf: payload}

	length, err := r.u16()
	if err != nil {
		return nil, err
	}

	return r.take(int(length))
}

// reader walks a payload tracking the current offset. Every read checks the
// remaining buffer first so truncated or lying length fields surface as
// ErrMalformed instead of a slice panic.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrMalformed, n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n

	return b, nil
}

func (r *reader) u8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

// shortString reads a 1-byte length prefix followed by that many raw bytes.
func (r *reader) shortString() ([]byte, error) {
	n, err := r.u8()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

// longString reads a 4-byte little-endian length prefix followed by that
// many raw bytes.
func (r *reader) longString() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}
