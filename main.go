// ABOUTME: Entry point for the Subversion Edge discovery browser
// ABOUTME: Watches the local network for servers and shows them in a TUI or as a stream
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/collabnet/svnedge-discovery/internal/config"
	"github.com/collabnet/svnedge-discovery/internal/httpapi"
	"github.com/collabnet/svnedge-discovery/internal/launcher"
	"github.com/collabnet/svnedge-discovery/internal/ui"
	"github.com/collabnet/svnedge-discovery/pkg/discovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const feedCapacity = 64

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
	cfg, err := config.LoadBrowser(".env", args, os.Stderr)
	if err != nil {
		return err
	}

	if cfg.ListInterfaces {
		return listInterfaces(os.Stdout)
	}

	st, err := discovery.ParseServiceType(cfg.Type)
	if err != nil {
		return err
	}

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	useTUI := !cfg.NoTUI
	var out io.Writer = f
	if !useTUI {
		// Streaming mode: log to both stderr and file
		out = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, f)
	}
	logger := zerolog.New(out).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("scope", "svnedge_discovery").
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []discovery.ClientOption{
		discovery.WithClientLogger(logger.With().Str("subscope", "client").Logger()),
		discovery.WithQueryInterval(cfg.QueryInterval),
		discovery.WithQueryTimeout(cfg.QueryTimeout),
		discovery.WithMissLimit(cfg.MissLimit),
	}
	if ip := cfg.BindIP(); ip != nil {
		opts = append(opts, discovery.WithBindAddress(ip))
	}
	if cfg.Hostname != "" {
		opts = append(opts, discovery.WithHostnameHint(cfg.Hostname))
	}

	client, err := discovery.NewClient(st, opts...)
	if err != nil {
		return fmt.Errorf("starting discovery: %w", err)
	}
	defer func() {
		if err := client.Stop(); err != nil {
			logger.Error().Err(err).Msg("stopping discovery")
		}
	}()

	feed, err := discovery.NewFeed(feedCapacity, discovery.WithFeedLogger(logger.With().Str("subscope", "feed").Logger()))
	if err != nil {
		return fmt.Errorf("creating feed: %w", err)
	}
	defer feed.Close()
	client.AddObserver(feed)

	registry := prometheus.NewRegistry()
	registry.MustRegister(client.Metrics()...)
	registry.MustRegister(feed.Metrics()...)

	var wg sync.WaitGroup
	defer wg.Wait()

	if cfg.HTTPAddr != "" {
		ctrl := httpapi.New(cfg.HTTPAddr, client, registry, logger.With().Str("subscope", "http").Logger())
		registry.MustRegister(ctrl.Metrics()...)
		client.AddObserver(ctrl.Observer())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctrl.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("http api stopped")
				stop()
			}
		}()
	}

	logger.Info().
		Str("type", st.Wire()).
		Str("bind", cfg.Bind).
		Bool("tui", useTUI).
		Msg("browsing")

	if !useTUI {
		err := ui.Stream(ctx, feed, os.Stdout)
		stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	prog := ui.Run(ui.Options{
		Feed:        feed,
		ServiceType: st.Wire(),
		Bind:        cfg.Bind,
		Launch:      launcher.New().Open,
	})
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()

	_, err = prog.Run()
	stop()
	if err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}

func listInterfaces(w io.Writer) error {
	ips, err := discovery.LocalIPv4()
	if err != nil {
		return fmt.Errorf("listing interfaces: %w", err)
	}
	if len(ips) == 0 {
		_, err := fmt.Fprintln(w, "No usable IPv4 address found")
		return err
	}
	for i, ip := range ips {
		if _, err := fmt.Fprintf(w, "# %d) %s\n", i+1, ip); err != nil {
			return err
		}
	}
	return nil
}
