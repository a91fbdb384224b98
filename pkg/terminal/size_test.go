package terminal

import "testing"

func TestGetSize_EnvFallback(t *testing.T) {
	// In a test runner, ioctl will likely fail (no TTY), so env vars
	// or defaults should be returned.
	t.Setenv("COLUMNS", "132")
	t.Setenv("LINES", "50")

	s := GetSize()
	// The ioctl may succeed if running in a terminal, so we just
	// verify we get positive values.
	if s.Cols <= 0 {
		t.Errorf("Size.Cols = %d, want > 0", s.Cols)
	}
	if s.Rows <= 0 {
		t.Errorf("Size.Rows = %d, want > 0", s.Rows)
	}
}

func TestGetSize_Defaults(t *testing.T) {
	// Clear COLUMNS/LINES to test 80x24 fallback (when ioctl also fails).
	clearTermEnv(t)

	s := GetSize()
	if s.Cols <= 0 {
		t.Errorf("Size.Cols = %d, want > 0", s.Cols)
	}
	if s.Rows <= 0 {
		t.Errorf("Size.Rows = %d, want > 0", s.Rows)
	}
}

func TestGetSizeFromFd_InvalidFd(t *testing.T) {
	clearTermEnv(t)
	t.Setenv("COLUMNS", "100")
	t.Setenv("LINES", "30")

	// fd 999 is invalid; should fall back to env.
	s := GetSizeFromFd(999)
	if s.Cols != 100 {
		t.Errorf("Size.Cols = %d, want 100", s.Cols)
	}
	if s.Rows != 30 {
		t.Errorf("Size.Rows = %d, want 30", s.Rows)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")
	if got := envInt("TEST_INT_VAR", 10); got != 42 {
		t.Errorf("envInt = %d, want 42", got)
	}

	t.Setenv("TEST_INT_VAR", "invalid")
	if got := envInt("TEST_INT_VAR", 10); got != 10 {
		t.Errorf("envInt(invalid) = %d, want 10 (fallback)", got)
	}

	t.Setenv("TEST_INT_VAR", "-5")
	if got := envInt("TEST_INT_VAR", 10); got != 10 {
		t.Errorf("envInt(negative) = %d, want 10 (fallback)", got)
	}

	t.Setenv("TEST_INT_VAR", "")
	if got := envInt("TEST_INT_VAR", 10); got != 10 {
		t.Errorf("envInt(empty) = %d, want 10 (fallback)", got)
	}
}
