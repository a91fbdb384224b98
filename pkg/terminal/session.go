package terminal

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/kittyplace/imgplace/pkg/protocol"
)

// SessionID identifies the terminal instance imgplace's ID/upload
// databases are keyed by, one database file per session. It is
// derived from the most stable identifier the environment offers, so
// that re-running imgplace inside the same terminal window reuses the
// same on-disk session database instead of minting a fresh one every
// invocation.
//
// Precedence: KITTY_WINDOW_ID / WINDOWID (stable per terminal window),
// then TMUX's pane identity (stable per tmux session+window+pane), then
// a fresh random UUID (a new terminal instance imgplace hasn't seen
// before).
func SessionID() string {
	if v := os.Getenv("KITTY_WINDOW_ID"); v != "" {
		return "kitty-" + v
	}
	if n, ok := ParseWindowID(os.Getenv("WINDOWID")); ok {
		return fmt.Sprintf("windowid-%d", n)
	}
	if v := os.Getenv("TMUX_PANE"); v != "" {
		return "tmux-" + strings.TrimPrefix(v, "%")
	}
	return uuid.NewString()
}

// NumTmuxLayers reports how many nested tmux DCS-passthrough wraps a
// command must go through to reach the real terminal.
// TMUX is set once per attached client; imgplace does not attempt to
// detect nested tmux-in-tmux beyond the one layer the environment
// variable reports.
func NumTmuxLayers() int {
	if os.Getenv("TMUX") != "" {
		return 1
	}
	return 0
}

// IsSSH reports whether the current session is running over SSH; the
// coordinator's "auto" transport selection picks DIRECT
// under SSH and FILE otherwise.
func IsSSH() bool {
	return isSSH()
}

// IsOutputTTY reports whether fd is a real terminal device rather than a
// pipe or redirected file, used to pick use_line_feeds's "auto" default.
func IsOutputTTY(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SupportedFormat returns the KGP pixel/encoding format imgplace should
// request from the conversion cache for term: always PNG (f=100,
// pkg/protocol.FormatPNG), since imgplace always emits Kitty Graphics
// Protocol bytes. The terminal argument is not consulted; the detected
// terminal is only reported by `status`.
func SupportedFormat(Terminal) protocol.Format {
	return protocol.FormatPNG
}

// WindowDimensions re-exports GetSize for callers that want a single
// terminal-facing entry point for cell and pixel dimensions.
func WindowDimensions() Size {
	return GetSize()
}

// ParseWindowID converts the WINDOWID environment variable (an X11
// window id, decimal or 0x-prefixed hex) to its numeric value, so a
// window id some environment exports in hex still names the same
// session database as its decimal form.
func ParseWindowID(v string) (int64, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
