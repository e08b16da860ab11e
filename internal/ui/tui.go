// ABOUTME: TUI initialization and the plain stream printer
// ABOUTME: Both read server records from a discovery feed
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/collabnet/svnedge-discovery/pkg/discovery"
)

// Options configures the TUI model
type Options struct {
	Feed        *discovery.Feed
	ServiceType string
	Bind        string
	// Launch opens a URL, nil disables the enter key
	Launch func(url string) error
}

// NewModel creates a new TUI model
func NewModel(o Options) Model {
	return Model{
		feed:        o.Feed,
		serviceType: o.ServiceType,
		bind:        o.Bind,
		launch:      o.Launch,
		status:      "Browsing...",
	}
}

// Run creates the TUI program. The caller starts it with Run on the program.
func Run(o Options) *tea.Program {
	return tea.NewProgram(NewModel(o), tea.WithAltScreen())
}

// Stream writes one line per record until ctx is done or the feed closes
func Stream(ctx context.Context, feed *discovery.Feed, w io.Writer) error {
	for {
		r, err := feed.Next(ctx)
		if errors.Is(err, discovery.ErrFeedClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, FormatRecord(r, time.Now())); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
}

// FormatRecord renders a record as a single stream line
func FormatRecord(r discovery.ServerRecord, at time.Time) string {
	line := fmt.Sprintf("%s %-8s %s", at.Format(time.TimeOnly), r.Event(), r.ServiceName())
	if r.URL() != "" {
		line += " " + r.URL()
	}
	if props := joinProperties(r); props != "" {
		line += " " + props
	}
	return line
}

func joinProperties(r discovery.ServerRecord) string {
	pairs := []string{}
	for _, key := range r.ServiceType().RequiredKeys() {
		if v, found := r.Property(key); found {
			pairs = append(pairs, key.String()+"="+v)
		}
	}
	return strings.Join(pairs, " ")
}
