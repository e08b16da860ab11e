// ABOUTME: Opens server URLs in the user's web browser
// ABOUTME: Uses the platform opener, falling back to known browsers on Unix
package launcher

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var (
	// ErrUnsupportedURL is returned for anything but absolute http(s) URLs
	ErrUnsupportedURL = errors.New("only http and https URLs can be opened")
	// ErrNoBrowser is returned when no opener is installed
	ErrNoBrowser = errors.New("no web browser found")
)

// unixBrowsers are tried in order after xdg-open
var unixBrowsers = []string{
	"xdg-open",
	"google-chrome",
	"firefox",
	"opera",
	"konqueror",
	"epiphany",
	"seamonkey",
	"mozilla",
}

// Launcher starts a browser process for a URL
type Launcher struct {
	goos     string
	lookPath func(file string) (string, error)
	start    func(name string, args ...string) error
}

// New returns a launcher for the running platform
func New() *Launcher {
	return &Launcher{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		start: func(name string, args ...string) error {
			cmd := exec.Command(name, args...)
			if err := cmd.Start(); err != nil {
				return err
			}
			go func() { _ = cmd.Wait() }()
			return nil
		},
	}
}

// Open validates rawURL and hands it to the platform opener without waiting
func (l *Launcher) Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	name, args, err := l.command(u.String())
	if err != nil {
		return err
	}
	if err := l.start(name, args...); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	return nil
}

func (l *Launcher) command(target string) (string, []string, error) {
	switch l.goos {
	case "darwin":
		return "open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	}

	for _, browser := range unixBrowsers {
		if path, err := l.lookPath(browser); err == nil {
			return path, []string{target}, nil
		}
	}
	return "", nil, ErrNoBrowser
}
