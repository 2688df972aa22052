// Package browser opens authorization URLs in the user's default browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Opener launches URLs through the operating system's URL handler.
type Opener struct {
	goos  string
	start func(name string, args ...string) error
}

// NewOpener returns an Opener for the running OS.
func NewOpener() *Opener {
	return &Opener{goos: runtime.GOOS, start: startCommand}
}

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start() // #nosec G204 -- URL validated by Command
}

// Open opens the URL with the default Opener.
func Open(rawURL string) error {
	return NewOpener().Open(rawURL)
}

// Open validates rawURL and hands it to the system handler without waiting
// for the browser to exit.
func (o *Opener) Open(rawURL string) error {
	name, args, err := Command(o.goos, rawURL)
	if err != nil {
		return err
	}
	if err := o.start(name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Command returns the command that opens rawURL on goos. Only absolute
// http and https URLs are accepted so nothing else reaches the shell handler.
func Command(goos, rawURL string) (string, []string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, fmt.Errorf("unsupported URL scheme: %q (only http and https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("invalid URL: missing host")
	}

	switch goos {
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{rawURL}, nil
	case "darwin":
		return "open", []string{rawURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
