package terminal

import (
	"os"
	"testing"
)

// termEnvVars lists all environment variables inspected during detection.
// Tests clear these before each case to ensure isolation.
var termEnvVars = []string{
	"TERM_PROGRAM", "TERM", "COLORTERM",
	"KITTY_WINDOW_ID", "ITERM_SESSION_ID", "WEZTERM_EXECUTABLE",
	"TILIX_ID", "VTE_VERSION", "LC_TERMINAL",
	"INSIDE_EMACS", "TMUX", "STY",
	"SSH_TTY", "SSH_CONNECTION", "SSH_CLIENT",
	"COLUMNS", "LINES",
}

// clearTermEnv unsets all terminal-related env vars for test isolation.
// Uses t.Setenv under the hood (via save/restore) so cleanup is automatic.
func clearTermEnv(t *testing.T) {
	t.Helper()
	for _, v := range termEnvVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestDetect_Ghostty_TermProgram(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "ghostty")

	got := Detect()
	if got != TermGhostty {
		t.Errorf("Detect() = %v, want %v", got, TermGhostty)
	}
}

func TestDetect_Ghostty_Term(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM", "xterm-ghostty")

	got := Detect()
	if got != TermGhostty {
		t.Errorf("Detect() = %v, want %v", got, TermGhostty)
	}
}

func TestDetect_Kitty_TermProgram(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "kitty")

	got := Detect()
	if got != TermKitty {
		t.Errorf("Detect() = %v, want %v", got, TermKitty)
	}
}

func TestDetect_Kitty_Term(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM", "xterm-kitty")

	got := Detect()
	if got != TermKitty {
		t.Errorf("Detect() = %v, want %v", got, TermKitty)
	}
}

func TestDetect_Kitty_WindowID(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("KITTY_WINDOW_ID", "123")

	got := Detect()
	if got != TermKitty {
		t.Errorf("Detect() = %v, want %v", got, TermKitty)
	}
}

func TestDetect_WezTerm_TermProgram(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "WezTerm")

	got := Detect()
	if got != TermWezTerm {
		t.Errorf("Detect() = %v, want %v", got, TermWezTerm)
	}
}

func TestDetect_WezTerm_Executable(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("WEZTERM_EXECUTABLE", "/usr/local/bin/wezterm")

	got := Detect()
	if got != TermWezTerm {
		t.Errorf("Detect() = %v, want %v", got, TermWezTerm)
	}
}

func TestDetect_ITerm2_TermProgram(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "iTerm.app")

	got := Detect()
	if got != TermITerm2 {
		t.Errorf("Detect() = %v, want %v", got, TermITerm2)
	}
}

func TestDetect_ITerm2_SessionID(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("ITERM_SESSION_ID", "w0t0p0:ABCDEF-1234")

	got := Detect()
	if got != TermITerm2 {
		t.Errorf("Detect() = %v, want %v", got, TermITerm2)
	}
}

func TestDetect_ITerm2_LCTerminal(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("LC_TERMINAL", "iTerm2")

	got := Detect()
	if got != TermITerm2 {
		t.Errorf("Detect() = %v, want %v", got, TermITerm2)
	}
}

func TestDetect_Alacritty_TermProgram(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "alacritty")

	got := Detect()
	if got != TermAlacritty {
		t.Errorf("Detect() = %v, want %v", got, TermAlacritty)
	}
}

func TestDetect_Alacritty_Term(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM", "alacritty")

	got := Detect()
	if got != TermAlacritty {
		t.Errorf("Detect() = %v, want %v", got, TermAlacritty)
	}
}

func TestDetect_VTE_Tilix(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("VTE_VERSION", "6800")
	t.Setenv("TILIX_ID", "some-id")

	got := Detect()
	if got != TermTilix {
		t.Errorf("Detect() = %v, want %v", got, TermTilix)
	}
}

func TestDetect_VTE_GNOME(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("VTE_VERSION", "6800")

	got := Detect()
	if got != TermGNOME {
		t.Errorf("Detect() = %v, want %v", got, TermGNOME)
	}
}

func TestDetect_VSCode(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "vscode")

	got := Detect()
	if got != TermVSCode {
		t.Errorf("Detect() = %v, want %v", got, TermVSCode)
	}
}

func TestDetect_Emacs(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("INSIDE_EMACS", "29.1,vterm")

	got := Detect()
	if got != TermEmacs {
		t.Errorf("Detect() = %v, want %v", got, TermEmacs)
	}
}

func TestDetect_Tmux(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("TMUX", "/tmp/tmux-501/default,12345,0")

	got := Detect()
	if got != TermTmux {
		t.Errorf("Detect() = %v, want %v", got, TermTmux)
	}
}

func TestDetect_Screen(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("STY", "12345.pts-0.host")
	t.Setenv("TERM", "screen-256color")

	got := Detect()
	if got != TermScreen {
		t.Errorf("Detect() = %v, want %v", got, TermScreen)
	}
}

func TestDetect_Generic(t *testing.T) {
	clearTermEnv(t)

	got := Detect()
	if got != TermGeneric {
		t.Errorf("Detect() = %v, want %v", got, TermGeneric)
	}
}

func TestDetect_TermProgram_Priority(t *testing.T) {
	// TERM_PROGRAM should take priority over TMUX.
	clearTermEnv(t)
	t.Setenv("TERM_PROGRAM", "ghostty")
	t.Setenv("TMUX", "/tmp/tmux-501/default,12345,0")

	got := Detect()
	if got != TermGhostty {
		t.Errorf("Detect() = %v, want TermGhostty (TERM_PROGRAM should win over TMUX)", got)
	}
}

func TestTerminal_String(t *testing.T) {
	cases := []struct {
		term Terminal
		want string
	}{
		{TermUnknown, "unknown"},
		{TermGhostty, "ghostty"},
		{TermKitty, "kitty"},
		{TermWezTerm, "wezterm"},
		{TermITerm2, "iterm2"},
		{TermAlacritty, "alacritty"},
		{TermTilix, "tilix"},
		{TermGNOME, "gnome-terminal"},
		{TermTmux, "tmux"},
		{TermScreen, "screen"},
		{TermVSCode, "vscode"},
		{TermEmacs, "emacs"},
		{TermGeneric, "generic"},
		{Terminal(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.term.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.term, got, tc.want)
		}
	}
}

func TestIsSSH(t *testing.T) {
	clearTermEnv(t)
	if isSSH() {
		t.Error("isSSH() = true, want false with no SSH_* vars set")
	}

	t.Setenv("SSH_TTY", "/dev/pts/0")
	if !isSSH() {
		t.Error("isSSH() = false, want true with SSH_TTY set")
	}
}
