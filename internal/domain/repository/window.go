package repository

import (
	"strings"
	"time"
)

// Window is a lookback range used to filter history before aggregation.
type Window string

const (
	Window4H Window = "4H"
	Window1D Window = "1D"
	Window3D Window = "3D"
	Window1W Window = "1W"
)

// Windows lists the supported windows, shortest first.
func Windows() []Window { return []Window{Window4H, Window1D, Window3D, Window1W} }

// Duration returns the fixed length of w (the default window for unknown values).
func (w Window) Duration() time.Duration {
	switch w {
	case Window4H:
		return 4 * time.Hour
	case Window1D:
		return 24 * time.Hour
	case Window3D:
		return 3 * 24 * time.Hour
	case Window1W:
		return 7 * 24 * time.Hour
	default:
		return DefaultWindow().Duration()
	}
}

// IsValidWindow returns true if w is a supported window.
func IsValidWindow(w Window) bool {
	switch w {
	case Window4H, Window1D, Window3D, Window1W:
		return true
	default:
		return false
	}
}

// DefaultWindow returns the default window.
func DefaultWindow() Window { return Window1D }

// NormalizeWindow converts raw string (any case) to a valid window (or default).
func NormalizeWindow(s string) Window {
	w := Window(strings.ToUpper(strings.TrimSpace(s)))
	if IsValidWindow(w) {
		return w
	}
	return DefaultWindow()
}
