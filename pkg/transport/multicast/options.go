// ABOUTME: Functional options for the multicast browser and publisher
// ABOUTME: Query pacing, removal threshold, hostname and logger
package multicast

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/rs/zerolog"
)

// Params holds the settings of browsers and publishers
type Params struct {
	interval  time.Duration
	timeout   time.Duration
	missLimit int
	hostname  string
	logger    zerolog.Logger
}

func defaultParams(scope string) Params {
	return Params{
		interval:  time.Second * 5, //nolint: mnd
		timeout:   time.Second * 2, //nolint: mnd
		missLimit: 3,               //nolint: mnd
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", scope).
			Logger(),
	}
}

// Sets the pause between two browse query rounds.
// Default is 5s.
func WithQueryInterval(d time.Duration) options.Option[Params] {
	return func(target *Params) error {
		if d <= 0 {
			return fmt.Errorf("query interval must be positive, got: %s", d.String())
		}
		target.interval = d
		return nil
	}
}

// Sets how long one browse query round listens for answers.
// Default is 2s.
func WithQueryTimeout(d time.Duration) options.Option[Params] {
	return func(target *Params) error {
		if d <= 0 {
			return fmt.Errorf("query timeout must be positive, got: %s", d.String())
		}
		target.timeout = d
		return nil
	}
}

// Sets how many consecutive rounds an instance may be missing before it is
// reported removed.
// Default is 3.
func WithMissLimit(n int) options.Option[Params] {
	return func(target *Params) error {
		if n <= 0 {
			return fmt.Errorf("miss limit must be positive, got: %d", n)
		}
		target.missLimit = n
		return nil
	}
}

// Sets the host name announced in SRV records.
// Default is the OS host name in the announcement domain.
func WithHostname(h string) options.Option[Params] {
	return func(target *Params) error {
		if h == "" {
			return errors.New("got empty hostname")
		}
		target.hostname = h
		return nil
	}
}

// Sets custom logger.
// Default is stderr console logger.
func WithLogger(l zerolog.Logger) options.Option[Params] {
	return func(target *Params) error {
		target.logger = l
		return nil
	}
}
