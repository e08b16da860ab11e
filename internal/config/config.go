// ABOUTME: Configuration of the browser and register tools
// ABOUTME: Values come from .env, then SVNEDGE_* environment, then command line flags
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// EnvPrefix is the prefix of every environment variable read by the tools
const EnvPrefix = "SVNEDGE"

// Config validation errors
var (
	ErrInvalidBindAddr  = errors.New("bind must be an IP address")
	ErrBindRequired     = errors.New("bind is required")
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidInterval  = errors.New("query_interval and query_timeout must be positive")
	ErrInvalidMissLimit = errors.New("miss_limit must be positive")
)

// Browser configures the discovery browser tool
type Browser struct {
	Bind           string        `envconfig:"BIND"`
	Type           string        `envconfig:"TYPE" default:"csvn"`
	Hostname       string        `envconfig:"HOSTNAME"`
	LogFile        string        `envconfig:"LOG_FILE" default:"svnedge-discovery.log"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	NoTUI          bool          `envconfig:"NO_TUI"`
	HTTPAddr       string        `envconfig:"HTTP_ADDR"`
	QueryInterval  time.Duration `envconfig:"QUERY_INTERVAL" default:"5s"`
	QueryTimeout   time.Duration `envconfig:"QUERY_TIMEOUT" default:"2s"`
	MissLimit      int           `envconfig:"MISS_LIMIT" default:"3"`
	ListInterfaces bool          `ignored:"true"`
}

// Register configures the register tool
type Register struct {
	Bind          string `envconfig:"BIND"`
	Type          string `envconfig:"TYPE" default:"csvn"`
	Name          string `envconfig:"NAME" default:"collabnetsvn"`
	Hostname      string `envconfig:"HOSTNAME"`
	Port          int    `envconfig:"PORT"`
	ContextPath   string `envconfig:"CONTEXT_PATH" default:"/csvn"`
	TeamForgePath string `envconfig:"TEAMFORGE_PATH" default:"/integration"`
	HTTPPath      string `envconfig:"HTTP_PATH" default:"/"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadBrowser reads the browser configuration. args excludes the program name.
func LoadBrowser(envFile string, args []string, output io.Writer) (Browser, error) {
	var cfg Browser
	if err := loadEnv(envFile, &cfg); err != nil {
		return Browser{}, err
	}

	fset := flag.NewFlagSet("svnedge-discovery", flag.ContinueOnError)
	fset.SetOutput(output)
	fset.StringVar(&cfg.Bind, "bind", cfg.Bind, "Local IPv4 address to browse from (default: all interfaces)")
	fset.StringVar(&cfg.Type, "type", cfg.Type, "Service type to observe: csvn or http")
	fset.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "Host name shown in logs")
	fset.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fset.BoolVar(&cfg.NoTUI, "no-tui", cfg.NoTUI, "Disable TUI, stream events to stdout instead")
	fset.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Serve the server list, event feed and metrics on this address")
	fset.DurationVar(&cfg.QueryInterval, "query-interval", cfg.QueryInterval, "Pause between browse rounds")
	fset.DurationVar(&cfg.QueryTimeout, "query-timeout", cfg.QueryTimeout, "How long a browse round listens for answers")
	fset.IntVar(&cfg.MissLimit, "miss-limit", cfg.MissLimit, "Silent rounds before a server is reported down")
	fset.BoolVar(&cfg.ListInterfaces, "list-interfaces", false, "Print usable local addresses and exit")
	if err := fset.Parse(args); err != nil {
		return Browser{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Browser{}, err
	}
	return cfg, nil
}

// Validate checks the browser configuration
func (c Browser) Validate() error {
	if c.Bind != "" && net.ParseIP(c.Bind) == nil {
		return ErrInvalidBindAddr
	}
	if !knownLevel(c.LogLevel) {
		return ErrInvalidLogLevel
	}
	if c.QueryInterval <= 0 || c.QueryTimeout <= 0 {
		return ErrInvalidInterval
	}
	if c.MissLimit <= 0 {
		return ErrInvalidMissLimit
	}
	return nil
}

// BindIP returns the parsed bind address, nil for all interfaces
func (c Browser) BindIP() net.IP {
	return net.ParseIP(c.Bind)
}

// LoadRegister reads the register configuration. args excludes the program name.
func LoadRegister(envFile string, args []string, output io.Writer) (Register, error) {
	var cfg Register
	if err := loadEnv(envFile, &cfg); err != nil {
		return Register{}, err
	}

	fset := flag.NewFlagSet("svnedge-register", flag.ContinueOnError)
	fset.SetOutput(output)
	fset.StringVar(&cfg.Bind, "bind", cfg.Bind, "Local IPv4 address to announce on")
	fset.StringVar(&cfg.Type, "type", cfg.Type, "Service type to announce: csvn or http")
	fset.StringVar(&cfg.Name, "name", cfg.Name, "Announced service name")
	fset.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "Host name placed in SRV records (default: OS host name)")
	fset.IntVar(&cfg.Port, "port", cfg.Port, "Port of the announced service")
	fset.StringVar(&cfg.ContextPath, "context-path", cfg.ContextPath, "csvn: console context path")
	fset.StringVar(&cfg.TeamForgePath, "teamforge-path", cfg.TeamForgePath, "csvn: TeamForge integration path")
	fset.StringVar(&cfg.HTTPPath, "path", cfg.HTTPPath, "http: advertised path")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := fset.Parse(args); err != nil {
		return Register{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Register{}, err
	}
	return cfg, nil
}

// Validate checks the register configuration
func (c Register) Validate() error {
	if c.Bind == "" {
		return ErrBindRequired
	}
	if net.ParseIP(c.Bind) == nil {
		return ErrInvalidBindAddr
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if !knownLevel(c.LogLevel) {
		return ErrInvalidLogLevel
	}
	return nil
}

// BindIP returns the parsed bind address
func (c Register) BindIP() net.IP {
	return net.ParseIP(c.Bind)
}

// loadEnv applies envFile, when present, then the environment onto target
func loadEnv(envFile string, target any) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, target); err != nil {
		return fmt.Errorf("processing env: %w", err)
	}
	return nil
}

// Level returns the zerolog level of LogLevel
func (c Browser) Level() zerolog.Level {
	return parseLevel(c.LogLevel)
}

// Level returns the zerolog level of LogLevel
func (c Register) Level() zerolog.Level {
	return parseLevel(c.LogLevel)
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func knownLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
