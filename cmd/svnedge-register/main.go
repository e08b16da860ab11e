// ABOUTME: Entry point for the Subversion Edge register tool
// ABOUTME: Announces one service on the local network until interrupted
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/collabnet/svnedge-discovery/internal/config"
	"github.com/collabnet/svnedge-discovery/internal/version"
	"github.com/collabnet/svnedge-discovery/pkg/discovery"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadRegister(".env", args, os.Stderr)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("scope", "svnedge_register").
		Logger()

	st, err := discovery.ParseServiceType(cfg.Type)
	if err != nil {
		return err
	}

	opts := []discovery.RegisterOption{
		discovery.WithServiceName(cfg.Name),
		discovery.WithRegisterLogger(logger),
	}
	if cfg.Hostname != "" {
		opts = append(opts, discovery.WithRegisterHostname(cfg.Hostname))
	}

	reg, err := discovery.NewRegister(cfg.BindIP(), opts...)
	if err != nil {
		return fmt.Errorf("creating register: %w", err)
	}

	if err := reg.RegisterService(cfg.Port, st, properties(st, cfg)); err != nil {
		_ = reg.Close()
		return fmt.Errorf("registering %s: %w", st, err)
	}

	logger.Info().
		Str("version", version.Version).
		Str("bind", cfg.Bind).
		Int("port", cfg.Port).
		Msg("service registered, interrupt to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("stopping the service")
	if err := reg.Close(); err != nil {
		return fmt.Errorf("closing register: %w", err)
	}
	return nil
}

// properties maps the configured paths onto the keys of st
func properties(st discovery.ServiceType, cfg config.Register) map[discovery.ServiceKey]string {
	switch st {
	case discovery.ServiceTypeCSVN:
		return map[discovery.ServiceKey]string{
			discovery.CSVNContextPath:   cfg.ContextPath,
			discovery.CSVNTeamForgePath: cfg.TeamForgePath,
		}
	case discovery.ServiceTypeHTTP:
		return map[discovery.ServiceKey]string{
			discovery.HTTPPath: cfg.HTTPPath,
		}
	}
	return nil
}
