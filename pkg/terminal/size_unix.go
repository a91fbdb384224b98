//go:build unix

package terminal

import "golang.org/x/sys/unix"

// getSizeFromIoctl queries the terminal size via TIOCGWINSZ ioctl.
// Returns a zero-value Size on failure.
func getSizeFromIoctl(fd uintptr) Size {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return Size{}
	}

	s := Size{
		Cols:   int(ws.Col),
		Rows:   int(ws.Row),
		PixelW: int(ws.Xpixel),
		PixelH: int(ws.Ypixel),
	}

	// Calculate per-cell pixel dimensions when pixel info is available.
	if s.PixelW > 0 && s.Cols > 0 {
		s.CellW = s.PixelW / s.Cols
	}
	if s.PixelH > 0 && s.Rows > 0 {
		s.CellH = s.PixelH / s.Rows
	}

	return s
}
