// ABOUTME: Functional options for clients, registers and feeds
// ABOUTME: Bind address, hostname hint, logger, pacing and transport injection
package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/collabnet/svnedge-discovery/pkg/transport"
	"github.com/horockey/go-toolbox/options"
	"github.com/rs/zerolog"
)

func defaultLogger(scope string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().
		Timestamp().
		Str("scope", scope).
		Logger()
}

// ClientOption configures NewClient
type ClientOption = options.Option[clientParams]

// RegisterOption configures NewRegister
type RegisterOption = options.Option[registerParams]

// FeedOption configures NewFeed
type FeedOption = options.Option[feedParams]

type clientParams struct {
	bindAddr      net.IP
	hostname      string
	logger        zerolog.Logger
	browser       transport.Browser
	queryInterval time.Duration
	queryTimeout  time.Duration
	missLimit     int
	detailLookups bool
}

func defaultClientParams() clientParams {
	return clientParams{
		logger:        defaultLogger("discovery_client"),
		detailLookups: true,
	}
}

// Sets the local address to browse from.
// Default is all interfaces.
func WithBindAddress(ip net.IP) options.Option[clientParams] {
	return func(target *clientParams) error {
		if ip == nil {
			return errors.New("got nil bind address")
		}
		target.bindAddr = ip
		return nil
	}
}

// Sets the host name the client identifies itself with in logs.
func WithHostnameHint(h string) options.Option[clientParams] {
	return func(target *clientParams) error {
		target.hostname = h
		return nil
	}
}

// Sets custom client logger.
// Default is stderr console logger.
func WithClientLogger(l zerolog.Logger) options.Option[clientParams] {
	return func(target *clientParams) error {
		target.logger = l
		return nil
	}
}

// Sets a user supplied browser. The client takes ownership and closes it on
// Stop. Interface checks become the browser's responsibility.
func WithBrowser(b transport.Browser) options.Option[clientParams] {
	return func(target *clientParams) error {
		if b == nil {
			return errors.New("got nil browser")
		}
		target.browser = b
		return nil
	}
}

// Sets the pause between browse query rounds of the default browser.
func WithQueryInterval(d time.Duration) options.Option[clientParams] {
	return func(target *clientParams) error {
		if d <= 0 {
			return fmt.Errorf("query interval must be positive, got: %s", d.String())
		}
		target.queryInterval = d
		return nil
	}
}

// Sets how long a query round of the default browser listens for answers.
func WithQueryTimeout(d time.Duration) options.Option[clientParams] {
	return func(target *clientParams) error {
		if d <= 0 {
			return fmt.Errorf("query timeout must be positive, got: %s", d.String())
		}
		target.queryTimeout = d
		return nil
	}
}

// Sets how many silent rounds mark a server as gone in the default browser.
func WithMissLimit(n int) options.Option[clientParams] {
	return func(target *clientParams) error {
		if n <= 0 {
			return fmt.Errorf("miss limit must be positive, got: %d", n)
		}
		target.missLimit = n
		return nil
	}
}

// Enables or disables the detail lookup issued on bare announcements.
// Default is enabled.
func WithDetailLookups(enabled bool) options.Option[clientParams] {
	return func(target *clientParams) error {
		target.detailLookups = enabled
		return nil
	}
}

type registerParams struct {
	serviceName string
	hostname    string
	logger      zerolog.Logger
	publisher   transport.Publisher
}

func defaultRegisterParams() registerParams {
	return registerParams{
		serviceName: DefaultServiceName,
		logger:      defaultLogger("discovery_register"),
	}
}

// Sets the published instance name.
// Default is DefaultServiceName.
func WithServiceName(name string) options.Option[registerParams] {
	return func(target *registerParams) error {
		if name == "" {
			return errors.New("got empty service name")
		}
		target.serviceName = name
		return nil
	}
}

// Sets the host name placed in SRV records.
// Default is the OS host name.
func WithRegisterHostname(h string) options.Option[registerParams] {
	return func(target *registerParams) error {
		if h == "" {
			return errors.New("got empty hostname")
		}
		target.hostname = h
		return nil
	}
}

// Sets custom register logger.
// Default is stderr console logger.
func WithRegisterLogger(l zerolog.Logger) options.Option[registerParams] {
	return func(target *registerParams) error {
		target.logger = l
		return nil
	}
}

// Sets a user supplied publisher. The register takes ownership and closes it
// on Close. Address checks become the publisher's responsibility.
func WithPublisher(p transport.Publisher) options.Option[registerParams] {
	return func(target *registerParams) error {
		if p == nil {
			return errors.New("got nil publisher")
		}
		target.publisher = p
		return nil
	}
}

type feedParams struct {
	sendTimeout time.Duration
	logger      zerolog.Logger
}

func defaultFeedParams() feedParams {
	return feedParams{
		sendTimeout: time.Second,
		logger:      defaultLogger("discovery_feed"),
	}
}

// Sets how long a full feed may hold up delivery before a record is dropped.
// Default is 1s.
func WithSendTimeout(d time.Duration) options.Option[feedParams] {
	return func(target *feedParams) error {
		if d <= 0 {
			return fmt.Errorf("send timeout must be positive, got: %s", d.String())
		}
		target.sendTimeout = d
		return nil
	}
}

// Sets custom feed logger.
// Default is stderr console logger.
func WithFeedLogger(l zerolog.Logger) options.Option[feedParams] {
	return func(target *feedParams) error {
		target.logger = l
		return nil
	}
}
