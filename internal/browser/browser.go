// Package browser opens URLs in the user's desktop browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// command returns the launcher for goos, or nil when the platform has none.
func command(goos, url string) *exec.Cmd {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", url)
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return nil
	}
}

// Open opens url in the default browser without waiting for it to exit.
func Open(url string) error {
	cmd := command(runtime.GOOS, url)
	if cmd == nil {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	// Reap the launcher in the background.
	go func() { _ = cmd.Wait() }()

	return nil
}
