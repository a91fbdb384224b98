package protocol

import "github.com/charmbracelet/x/ansi"

// WrapTmux wraps a single APC chunk in a tmux DCS passthrough sequence
// so it reaches the outer terminal instead of being swallowed by tmux;
// ansi.TmuxPassthrough handles the DCS-prefix/ESC-doubling/ST-suffix
// details.
func WrapTmux(chunk Chunk) Chunk {
	return Chunk(ansi.TmuxPassthrough(string(chunk)))
}

// WrapTmuxAll wraps every chunk in a sequence, for callers streaming a
// chunk list built by BuildTransmit.
func WrapTmuxAll(chunks []Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = WrapTmux(c)
	}
	return out
}
