package samp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rconLine(req []byte, line string) []byte {
	payload := []byte{byte(len(line)), byte(len(line) >> 8)}
	payload = append(payload, line...)
	return echoHeader(req, payload)
}

func TestRCONAggregation(t *testing.T) {
	server := newFakeServer(t, func(req []byte) [][]byte {
		return [][]byte{
			rconLine(req, "first"),
			rconLine(req, "second"),
			rconLine(req, "third"),
		}
	})
	client := newTestClient(t, server)
	client.RCONPassword = "secret"

	start := time.Now()
	lines, err := client.RCON(context.Background(), "cmdlist")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, lines)

	// Collection ends one silence window after the last datagram, regardless
	// of how many lines arrived.
	assert.Less(t, time.Since(start), client.SilenceWindow+client.Timeout)
}

func TestRCONSingleEmptyLine(t *testing.T) {
	server := newFakeServer(t, func(req []byte) [][]byte {
		return [][]byte{echoHeader(req, []byte{0, 0})}
	})
	client := newTestClient(t, server)
	client.RCONPassword = "secret"

	lines, err := client.RCON(context.Background(), "echo")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, lines)
}

func TestRCONRequestPayload(t *testing.T) {
	server := newFakeServer(t, func(req []byte) [][]byte {
		return [][]byte{rconLine(req, "ok")}
	})
	client := newTestClient(t, server)
	client.RCONPassword = "hunter2"

	_, err := client.RCON(context.Background(), "echo hi")
	require.NoError(t, err)

	req := <-server.requests
	require.Equal(t, OpcodeRCON, req[headerSize-1])

	want := []byte{7, 0}
	want = append(want, "hunter2"...)
	want = append(want, 7, 0)
	want = append(want, "echo hi"...)
	assert.Equal(t, want, req[headerSize:])
}

func TestRCONMissingPassword(t *testing.T) {
	server := newFakeServer(t, nil)
	client := newTestClient(t, server)

	_, err := client.RCON(context.Background(), "echo")
	assert.ErrorIs(t, err, ErrMissingPassword)

	// The configuration error fires before any socket activity.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, server.requestCount())
}

func TestRCONInvalidPassword(t *testing.T) {
	server := newFakeServer(t, func(req []byte) [][]byte {
		return [][]byte{rconLine(req, "Invalid RCON password.")}
	})
	client := newTestClient(t, server)
	client.RCONPassword = "wrong"

	_, err := client.RCON(context.Background(), "echo")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestRCONTotalSilence(t *testing.T) {
	server := newFakeServer(t, nil)
	client := newTestClient(t, server)
	client.RCONPassword = "secret"
	client.Timeout = 50 * time.Millisecond

	_, err := client.RCON(context.Background(), "echo")
	assert.ErrorIs(t, err, ErrTimeout)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, client.Attempts, server.requestCount())
}
