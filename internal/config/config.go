// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/samp/internal/logger"
	"github.com/woozymasta/samp/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Args struct {
		Host string `positional-arg-name:"host" description:"Server address"`
		Port int    `positional-arg-name:"port" description:"Server query port"`
	} `positional-args:"true" required:"2"`

	Query   Query         `group:"Query Options" env-namespace:"SAMPQ"`
	RCON    RCON          `group:"RCON Options" namespace:"rcon" env-namespace:"SAMPQ_RCON"`
	Monitor Monitor       `group:"Monitor Options" namespace:"monitor" env-namespace:"SAMPQ_MONITOR"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"SAMPQ_GEOIP"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"SAMPQ_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Query holds protocol tuning and output selection for one-shot queries.
type Query struct {
	// betteralign:ignore

	Timeout    time.Duration `short:"t" long:"timeout" env:"TIMEOUT" description:"Wait per request attempt" default:"2s"`
	Attempts   int           `long:"attempts" env:"ATTEMPTS" description:"Total request sends before giving up" default:"3"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response datagram buffer size" default:"4096"`
	Rules      bool          `short:"r" long:"rules" description:"Print the server rule list"`
	Players    bool          `short:"p" long:"players" description:"Print the player list"`
	Detailed   bool          `long:"detailed" description:"Request the detailed player list (includes ping)"`
}

// RCON holds remote console configuration.
type RCON struct {
	// betteralign:ignore

	Password      string        `long:"password" env:"PASSWORD" description:"RCON password"`
	Execute       string        `short:"e" long:"execute" description:"Run a single RCON command and exit"`
	Shell         bool          `short:"i" long:"shell" description:"Open an interactive RCON shell"`
	SilenceWindow time.Duration `long:"silence-window" env:"SILENCE_WINDOW" description:"Inter-packet silence that terminates an RCON response" default:"500ms"`
}

// Monitor holds periodic polling configuration.
type Monitor struct {
	// betteralign:ignore

	Enabled   bool          `long:"enable" env:"ENABLE" description:"Poll the server periodically and record snapshots"`
	Path      string        `short:"d" long:"db" env:"DB" description:"Path to SQLite database" default:"sampq.db"`
	Interval  time.Duration `long:"interval" env:"INTERVAL" description:"Polling interval" default:"1m"`
	Retention time.Duration `long:"retention" env:"RETENTION" description:"Delete snapshots older than this on start (0 keeps everything)"`
}

// GeoIP holds MaxMind GeoIP configuration for the monitor.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `long:"path" env:"PATH" description:"Path to MMDB file (empty disables country lookup)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the
// help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if (cfg.RCON.Shell || cfg.RCON.Execute != "") && cfg.RCON.Password == "" {
		fmt.Fprintln(os.Stderr,
			"RCON requires a password: pass `--rcon-password' or set `SAMPQ_RCON_PASSWORD`")
		os.Exit(1)
	}

	return &cfg
}
