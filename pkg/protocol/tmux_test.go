package protocol

import (
	"strings"
	"testing"
)

// TestTmuxWrapEscapesAndDoublesESC checks that wrapping a chunk for
// tmux passthrough must preserve every byte of the original chunk and
// escape it so tmux's DCS parser forwards it intact to the outer
// terminal (ansi.TmuxPassthrough handles the ESC-doubling internally;
// this test only pins the externally observable contract imgplace
// depends on).
func TestTmuxWrapEscapesAndDoublesESC(t *testing.T) {
	chunk := Chunk(apcStart + "a=t,i=1,f=32,t=d,q=2,m=0;QUJD" + apcEnd)

	wrapped := WrapTmux(chunk)

	if wrapped == Chunk(chunk) {
		t.Fatal("expected tmux wrapping to change the chunk")
	}
	if !strings.HasPrefix(string(wrapped), "\x1bPtmux;") {
		t.Errorf("expected tmux DCS prefix, got %q", wrapped)
	}
	if !strings.HasSuffix(string(wrapped), "\x1b\\") {
		t.Errorf("expected ST suffix, got %q", wrapped)
	}
	// The inner ESC bytes of the original APC sequence must appear
	// doubled so tmux's own parser doesn't terminate the passthrough
	// early.
	innerESCs := strings.Count(string(chunk), "\x1b")
	doubledESCs := strings.Count(string(wrapped), "\x1b\x1b")
	if doubledESCs < innerESCs {
		t.Errorf("expected at least %d doubled ESC pairs, found %d in %q", innerESCs, doubledESCs, wrapped)
	}
}

func TestWrapTmuxAllPreservesOrder(t *testing.T) {
	chunks := []Chunk{"a", "b", "c"}
	wrapped := WrapTmuxAll(chunks)
	if len(wrapped) != 3 {
		t.Fatalf("got %d chunks, want 3", len(wrapped))
	}
	for i, c := range wrapped {
		if !strings.Contains(string(c), string(chunks[i])) {
			t.Errorf("chunk %d lost original content: %q", i, c)
		}
	}
}
