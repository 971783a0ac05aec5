package samp

import (
	"context"
	"errors"
	"time"
)

// RCON executes an administrative command and collects the server's output
// lines in arrival order.
//
// The server streams its output as an unbounded sequence of datagrams with
// no terminator, so collection stops once no further response arrives within
// SilenceWindow. The initial send follows the usual timeout and retry
// semantics: total silence after all attempts is ErrTimeout, which also
// covers servers with RCON disabled. A response with no output at all is a
// valid empty result, not an error.
func (c *Client) RCON(ctx context.Context, command string) ([]string, error) {
	if c.RCONPassword == "" {
		return nil, ErrMissingPassword
	}

	first, err := c.request(ctx, OpcodeRCON, rconPayload(c.RCONPassword, command))
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, 8)

	raw, err := decodeRCONLine(first)
	if err != nil {
		return nil, err
	}
	lines = append(lines, decodeText(c.Detector, raw))

	// The first datagram arrived; keep collecting until the line goes quiet.
	buf := make([]byte, c.bufferSize())
	for {
		payload, err := c.await(ctx, OpcodeRCON, nil, buf, time.Now().Add(c.silenceWindow()))
		if errors.Is(err, errAttemptTimeout) {
			break
		}
		if err != nil {
			return nil, err
		}

		raw, err := decodeRCONLine(payload)
		if err != nil {
			return nil, err
		}
		lines = append(lines, decodeText(c.Detector, raw))
	}

	if len(lines) == 1 && lines[0] == invalidPasswordReply {
		return nil, ErrInvalidPassword
	}

	return lines, nil
}
