package upload

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/kittyplace/imgplace/pkg/protocol"
)

func TestTransportMediumSelection(t *testing.T) {
	cases := []struct {
		name   string
		policy TransportPolicy
		want   protocol.Transmission
	}{
		{"stream always direct", TransportPolicy{Method: "stream", IsSSH: false}, protocol.TransmissionDirect},
		{"file always file", TransportPolicy{Method: "file", IsSSH: true}, protocol.TransmissionFile},
		{"temp-file", TransportPolicy{Method: "temp-file"}, protocol.TransmissionTempFile},
		{"auto over ssh streams", TransportPolicy{Method: "auto", IsSSH: true}, protocol.TransmissionDirect},
		{"auto local sends path", TransportPolicy{Method: "auto", IsSSH: false}, protocol.TransmissionFile},
	}
	for _, tc := range cases {
		if got := tc.policy.Medium(); got != tc.want {
			t.Errorf("%s: Medium() = %c, want %c", tc.name, got, tc.want)
		}
	}
}

func TestTransportBudgetFollowsMedium(t *testing.T) {
	p := TransportPolicy{StreamMaxSize: 2 << 20, FileMaxSize: 10 << 20}
	if got := p.Budget(protocol.TransmissionDirect); got != 2<<20 {
		t.Errorf("direct budget = %d, want stream_max_size", got)
	}
	if got := p.Budget(protocol.TransmissionFile); got != 10<<20 {
		t.Errorf("file budget = %d, want file_max_size", got)
	}
	if got := p.Budget(protocol.TransmissionTempFile); got != 10<<20 {
		t.Errorf("temp-file budget = %d, want file_max_size", got)
	}
}

// TestFileMediumTransmitsPathNotBytes pins the path-based media
// contract: the payload of a t=f TRANSMIT is the base64 of the artifact
// filename, not of the file's contents.
func TestFileMediumTransmitsPathNotBytes(t *testing.T) {
	store := newTestStore(t)
	coord := NewCoordinator(store)
	artifact := newTestArtifact(t)

	var chunks []protocol.Chunk
	req := Request{
		ID: 11, TerminalID: "t", Description: "d",
		Artifact: artifact, Format: protocol.FormatPNG,
		WriteChunk: func(c protocol.Chunk) error {
			chunks = append(chunks, c)
			return nil
		},
	}
	params := Params{NumAttempts: 1, Transport: TransportPolicy{Method: "file"}}
	if _, err := coord.EnsureUploaded(context.Background(), req, params); err != nil {
		t.Fatalf("EnsureUploaded: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk for a short path payload, got %d", len(chunks))
	}
	wantPayload := base64.StdEncoding.EncodeToString([]byte(artifact.ArtifactPath))
	if got := string(chunks[0]); !strings.Contains(got, wantPayload) {
		t.Errorf("chunk does not carry the artifact path: %q", got)
	}
	if !strings.Contains(string(chunks[0]), "t=f") {
		t.Errorf("expected t=f transmission key: %q", chunks[0])
	}
}
