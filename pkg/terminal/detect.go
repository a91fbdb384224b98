// Package terminal provides the narrow terminal-name/session-identity
// surface the rest of imgplace treats as an external collaborator: a
// configured or environment-derived terminal name, SSH/tmux detection,
// and cell-size queries. It does not detect rendering capabilities or
// pick a graphics protocol — imgplace always speaks the Kitty Graphics
// Protocol regardless of the detected terminal.
package terminal

import (
	"os"
	"strings"
)

// Terminal identifies the terminal emulator in use.
type Terminal int

const (
	TermUnknown   Terminal = iota
	TermGhostty            // Ghostty (kitty graphics, true color, OSC 8)
	TermKitty              // Kitty (kitty graphics, keyboard protocol)
	TermWezTerm            // WezTerm (kitty graphics, sixel, iterm2 images)
	TermITerm2             // iTerm2 (iterm2 images, true color, OSC 8)
	TermAlacritty          // Alacritty (true color, no graphics protocol)
	TermTilix              // Tilix (VTE-based, true color)
	TermGNOME              // GNOME Terminal (VTE-based, true color)
	TermTmux               // tmux multiplexer
	TermScreen             // GNU Screen multiplexer
	TermVSCode             // VS Code integrated terminal
	TermEmacs              // Emacs vterm/eat
	TermGeneric            // Unknown terminal with basic capabilities
)

// terminalNames maps Terminal values to human-readable strings.
var terminalNames = [...]string{
	TermUnknown:   "unknown",
	TermGhostty:   "ghostty",
	TermKitty:     "kitty",
	TermWezTerm:   "wezterm",
	TermITerm2:    "iterm2",
	TermAlacritty: "alacritty",
	TermTilix:     "tilix",
	TermGNOME:     "gnome-terminal",
	TermTmux:      "tmux",
	TermScreen:    "screen",
	TermVSCode:    "vscode",
	TermEmacs:     "emacs",
	TermGeneric:   "generic",
}

// String returns the human-readable name of the terminal.
func (t Terminal) String() string {
	if int(t) < len(terminalNames) {
		return terminalNames[t]
	}
	return "unknown"
}

// Detect identifies the terminal emulator from environment variables.
// This is Layer 1 detection (0ms, no I/O). Detection proceeds through
// multiple signals ordered by reliability:
//
//  1. TERM_PROGRAM env var (most terminals set this)
//  2. TERM env var (xterm-ghostty, xterm-kitty, alacritty)
//  3. Terminal-specific vars (KITTY_WINDOW_ID, ITERM_SESSION_ID, etc.)
//  4. VTE_VERSION for VTE-based terminals (GNOME, Tilix)
//  5. INSIDE_EMACS for emacs terminals
//  6. TMUX / STY for multiplexers
//  7. LC_TERMINAL=iTerm2 (iTerm2 reached over SSH)
//  8. Fallback to TermGeneric
func Detect() Terminal {
	// Layer 1: TERM_PROGRAM is the most reliable single signal.
	if tp := os.Getenv("TERM_PROGRAM"); tp != "" {
		switch strings.ToLower(tp) {
		case "ghostty":
			return TermGhostty
		case "kitty":
			return TermKitty
		case "wezterm":
			return TermWezTerm
		case "iterm.app":
			return TermITerm2
		case "vscode":
			return TermVSCode
		case "alacritty":
			return TermAlacritty
		case "tmux":
			return TermTmux
		}
	}

	// Layer 2: TERM value encodes terminal identity in some emulators.
	if term := os.Getenv("TERM"); term != "" {
		switch {
		case term == "xterm-ghostty":
			return TermGhostty
		case term == "xterm-kitty":
			return TermKitty
		case strings.HasPrefix(term, "alacritty"):
			return TermAlacritty
		case strings.HasPrefix(term, "screen"):
			// GNU Screen sets TERM=screen or screen-256color.
			// Check STY to confirm it is actually screen.
			if os.Getenv("STY") != "" {
				return TermScreen
			}
		}
	}

	// Layer 3: Terminal-specific environment variables.
	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return TermKitty
	}
	if os.Getenv("ITERM_SESSION_ID") != "" {
		return TermITerm2
	}
	if os.Getenv("WEZTERM_EXECUTABLE") != "" {
		return TermWezTerm
	}

	// Layer 4: VTE-based terminals (GNOME Terminal, Tilix, etc.)
	if os.Getenv("VTE_VERSION") != "" {
		if os.Getenv("TILIX_ID") != "" {
			return TermTilix
		}
		return TermGNOME
	}

	// Layer 5: Emacs terminal emulators.
	if os.Getenv("INSIDE_EMACS") != "" {
		return TermEmacs
	}

	// Layer 6: Multiplexer detection. Checked late so inner terminal
	// detection from TERM_PROGRAM takes priority.
	if os.Getenv("TMUX") != "" {
		return TermTmux
	}
	if os.Getenv("STY") != "" {
		return TermScreen
	}

	// Layer 7: LC_TERMINAL identifies iTerm2 when reached via SSH.
	if os.Getenv("LC_TERMINAL") == "iTerm2" {
		return TermITerm2
	}

	return TermGeneric
}

// isSSH reports whether the current session is running over SSH, used by
// the exported IsSSH wrapper in session.go for the upload coordinator's
// "auto" transport selection.
func isSSH() bool {
	return os.Getenv("SSH_TTY") != "" ||
		os.Getenv("SSH_CONNECTION") != "" ||
		os.Getenv("SSH_CLIENT") != ""
}
