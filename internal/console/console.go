// Package console implements the interactive RCON shell.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/woozymasta/samp/pkg/samp"
)

// Commander is the subset of the query client the shell depends on.
type Commander interface {
	RCON(ctx context.Context, command string) ([]string, error)
	Ping(ctx context.Context) (time.Duration, error)
}

// Shell is an interactive RCON session reading commands line by line and
// printing server output.
type Shell struct {
	client Commander
	in     *bufio.Scanner
	out    io.Writer
	prompt string
}

// New creates a shell for client; prompt is printed before every input line.
func New(client Commander, in io.Reader, out io.Writer, prompt string) *Shell {
	return &Shell{
		client: client,
		in:     bufio.NewScanner(in),
		out:    out,
		prompt: prompt,
	}
}

// Run verifies the password with a harmless echo command, then processes
// input until EOF or a quit command. Per-command timeouts scale with the
// measured ping so slow servers are not cut off mid-response.
func (s *Shell) Run(ctx context.Context) error {
	ping, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("server is not responding: %w", err)
	}

	if _, err := s.client.RCON(ctx, "echo"); err != nil {
		switch {
		case errors.Is(err, samp.ErrInvalidPassword):
			return err
		case errors.Is(err, samp.ErrTimeout):
			return fmt.Errorf("RCON is disabled on this server: %w", err)
		default:
			return err
		}
	}

	commandTimeout := (ping + 5*time.Second) * 2

	for {
		fmt.Fprint(s.out, s.prompt)

		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		command := strings.TrimSpace(s.in.Text())
		switch command {
		case "":
			continue
		case "quit":
			return nil
		case "exit":
			// "exit" shuts the server down; make sure that is intended.
			if !s.confirm("Are you sure you want to shut your server down?") {
				continue
			}
		}

		s.execute(ctx, command, commandTimeout)

		if command == "exit" {
			return nil
		}
	}
}

func (s *Shell) execute(parent context.Context, command string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	lines, err := s.client.RCON(ctx, command)
	switch {
	case errors.Is(err, samp.ErrTimeout):
		fmt.Fprintln(s.out, "Unknown command or variable:", command)
		return
	case err != nil:
		fmt.Fprintln(s.out, "Error:", err)
		return
	}

	for _, line := range lines {
		fmt.Fprintln(s.out, line)
	}
}

func (s *Shell) confirm(question string) bool {
	for {
		fmt.Fprintf(s.out, "%s (y/N) ", question)

		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return false
		}

		switch strings.ToLower(strings.TrimSpace(s.in.Text())) {
		case "", "n", "no":
			return false
		case "y", "yes":
			return true
		default:
			fmt.Fprintln(s.out, "Please answer 'y' or 'n'.")
		}
	}
}
