// main is the entry point of the sampq utility. It queries SA-MP and open.mp
// servers for info, rules and players, executes RCON commands, and can poll
// a server periodically into a local SQLite database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/samp/internal/config"
	"github.com/woozymasta/samp/internal/console"
	"github.com/woozymasta/samp/internal/geoip"
	"github.com/woozymasta/samp/internal/logger"
	"github.com/woozymasta/samp/internal/monitor"
	"github.com/woozymasta/samp/internal/storage"
	"github.com/woozymasta/samp/pkg/samp"
)

func main() {
	cfg := config.Parse()
	logger.Setup(cfg.Logger)

	client, err := samp.New(cfg.Args.Host, cfg.Args.Port)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing client")
		}
	}()

	client.Timeout = cfg.Query.Timeout
	client.Attempts = cfg.Query.Attempts
	client.BufferSize = cfg.Query.BufferSize
	client.SilenceWindow = cfg.RCON.SilenceWindow
	client.RCONPassword = cfg.RCON.Password
	client.Logger = log.Logger

	// Graceful Shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case cfg.Monitor.Enabled:
		runMonitor(ctx, cfg, client)
	case cfg.RCON.Execute != "":
		runCommand(ctx, client, cfg.RCON.Execute)
	case cfg.RCON.Shell:
		runShell(ctx, client)
	default:
		runQuery(ctx, cfg, client)
	}
}

// runQuery performs a one-shot query and prints a server summary, plus rule
// and player tables when requested.
func runQuery(ctx context.Context, cfg *config.Config, client *samp.Client) {
	ping, err := client.Ping(ctx)
	if err != nil {
		log.Fatal().Err(err).Stringer("server", client.Addr()).Msg("Server is not responding")
	}

	info, err := client.Info(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Info query failed")
	}

	omp, err := client.IsOMP(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("open.mp probe failed")
	}

	fmt.Printf("Name:     %s\n", info.Hostname)
	fmt.Printf("Gamemode: %s\n", info.Gamemode)
	fmt.Printf("Language: %s\n", info.Language)
	fmt.Printf("Players:  %d/%d\n", info.Players, info.MaxPlayers)
	fmt.Printf("Ping:     %dms\n", ping.Milliseconds())
	fmt.Printf("Password: %s\n", yesNo(info.Password))
	fmt.Printf("open.mp:  %s\n", yesNo(omp))

	if cfg.Query.Rules {
		printRules(ctx, client)
	}

	if cfg.Query.Players {
		printPlayers(ctx, client, cfg.Query.Detailed)
	}
}

func printRules(ctx context.Context, client *samp.Client) {
	rules, err := client.Rules(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Rules query failed")
		return
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Rule", "Value"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, rule := range rules {
		tw.Append([]string{rule.Name, rule.Value})
	}
	tw.Render()
}

func printPlayers(ctx context.Context, client *samp.Client, detailed bool) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	var err error
	if detailed {
		var players []samp.DetailedPlayer
		if players, err = client.PlayersDetailed(ctx); err == nil {
			tw.SetHeader([]string{"Name", "Score", "Ping"})
			for _, p := range players {
				tw.Append([]string{p.Name, strconv.FormatInt(int64(p.Score), 10), strconv.FormatUint(uint64(p.Ping), 10)})
			}
		}
	} else {
		var players []samp.Player
		if players, err = client.Players(ctx); err == nil {
			tw.SetHeader([]string{"Name", "Score"})
			for _, p := range players {
				tw.Append([]string{p.Name, strconv.FormatInt(int64(p.Score), 10)})
			}
		}
	}

	if errors.Is(err, samp.ErrTimeout) {
		// Servers stop answering the player query past ~100 players.
		log.Warn().Msg("No player list returned, the server may be too crowded to answer")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Players query failed")
		return
	}

	fmt.Println()
	tw.Render()
}

// runCommand executes a single RCON command and prints its output.
func runCommand(ctx context.Context, client *samp.Client, command string) {
	lines, err := client.RCON(ctx, command)
	if err != nil {
		log.Fatal().Err(err).Msg("RCON command failed")
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}

// runShell opens the interactive RCON console.
func runShell(ctx context.Context, client *samp.Client) {
	prompt := fmt.Sprintf("rcon@%s # ", client.Addr())
	shell := console.New(client, os.Stdin, os.Stdout, prompt)

	if err := shell.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("RCON session failed")
	}

	fmt.Println("Goodbye, have a nice day!")
}

// runMonitor polls the server on an interval and records snapshots.
func runMonitor(ctx context.Context, cfg *config.Config, client *samp.Client) {
	store, err := storage.New(cfg.Monitor.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Monitor.Retention > 0 {
		cutoff := time.Now().Add(-cfg.Monitor.Retention)
		if deleted, err := store.PruneSnapshotsBefore(cutoff); err != nil {
			log.Error().Err(err).Msg("Failed to prune old snapshots")
		} else if deleted > 0 {
			log.Info().Int64("deleted", deleted).Msg("Pruned old snapshots")
		}
	}

	var geo *geoip.Provider
	if cfg.GeoIP.Path != "" {
		if err := geoip.EnsureDB(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		if geo, err = geoip.Open(cfg.GeoIP.Path); err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
			geo = nil
		} else {
			defer func() {
				if err := geo.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	log.Info().
		Stringer("server", client.Addr()).
		Dur("interval", cfg.Monitor.Interval).
		Msg("Monitoring server...")

	if err := monitor.New(client, store, geo, cfg.Monitor.Interval).Run(ctx); err != nil {
		log.Error().Err(err).Msg("Monitor failed")
	}

	log.Info().Msg("Monitor stopped")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
