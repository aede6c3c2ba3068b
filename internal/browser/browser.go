// Package browser opens a URL in the user's default browser during
// interactive OAuth login flows, falling back gracefully on headless hosts.
package browser

import (
	"os"
	"runtime"

	"github.com/skratchdot/open-golang/open"
)

// IsAvailable reports whether opening a browser is likely to work. Headless
// Linux hosts without a display server can't launch one, so callers should
// print the URL instead.
func IsAvailable() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

// OpenURL launches the given URL in the default browser.
func OpenURL(url string) error {
	return open.Run(url)
}
