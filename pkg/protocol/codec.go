// Package protocol implements the Kitty Graphics Protocol wire codec:
// building, chunking, and wrapping APC graphics commands (TRANSMIT,
// PUT, DELETE and their combinations), plus a narrow parser for the
// terminal's acknowledgements.
package protocol

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/kittyplace/imgplace/pkg/ikerr"
)

const (
	apcStart = "\x1b_G"
	apcEnd   = "\x1b\\"
)

// DefaultMaxPayloadSize is the maximum number of raw bytes carried per
// APC chunk before base64 encoding; each chunk's payload is the base64
// of at most this many input bytes.
const DefaultMaxPayloadSize = 2816

// Format is the pixel format carried by a=t,f=... commands.
type Format int

const (
	FormatRGB  Format = 24
	FormatRGBA Format = 32
	FormatPNG  Format = 100
)

// Transmission is the medium (t=...) a TRANSMIT command uses.
type Transmission byte

const (
	TransmissionDirect   Transmission = 'd'
	TransmissionFile     Transmission = 'f'
	TransmissionTempFile Transmission = 't'
	TransmissionSharedMem Transmission = 's'
)

// Quiet is the q= suppression level, sent as given (the zero value sends
// q=0); pkg/upload sends every TRANSMIT with QuietNoError (q=2).
type Quiet int

const (
	QuietNone    Quiet = 0
	QuietNoOK    Quiet = 1
	QuietNoError Quiet = 2
)

// TransmitParams configures a TRANSMIT (and optionally TRANSMIT+PUT)
// command.
type TransmitParams struct {
	ID           uint32
	PlacementID  uint32 // 0 means omit (p= is not sent)
	Format       Format
	Transmission Transmission
	Compress     bool
	Quiet        Quiet

	// WithPlacement, when true, folds a PUT (a=p) into the first chunk
	// (the "TRANSMIT+PUT" combined command); the placement fields below
	// are then required.
	WithPlacement bool
	Cols, Rows    int
	Z             int
	VirtualPlacement bool // U=1, the Unicode-placeholder placement mode

	// MaxPayloadChunk overrides DefaultMaxPayloadSize (the raw byte
	// count base64-encoded into each APC sequence); 0 means use the
	// default. pkg/upload sets this from its configured
	// max_payload_size.
	MaxPayloadChunk int
}

// Chunk is one APC escape sequence ready to write to the display stream.
type Chunk string

// BuildTransmit chunks data (raw pixel or PNG bytes) into one or more APC
// TRANSMIT sequences, optionally folding a PUT into the first chunk and
// optionally zlib-compressing the payload. This is the primitive
// pkg/upload's direct-chunk streaming sends one chunk at a
// time, so it can interleave backpressure/stall handling between chunks
// rather than writing everything in one call.
func BuildTransmit(data []byte, p TransmitParams) ([]Chunk, error) {
	if p.ID == 0 {
		return nil, ikerr.New(ikerr.InvalidConfig, "protocol.BuildTransmit")
	}
	if p.Transmission == 0 {
		p.Transmission = TransmissionDirect
	}

	payload := data
	compression := ""
	if p.Compress && len(data) > 0 {
		compressed, err := zlibCompress(data)
		if err == nil {
			payload = compressed
			compression = ",o=z"
		}
	}

	if len(payload) == 0 {
		return []Chunk{Chunk(fmt.Sprintf("%s%s;%s", apcStart, header(p, 0, compression), apcEnd))}, nil
	}

	maxPayload := p.MaxPayloadChunk
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadSize
	}

	var chunks []Chunk
	for i := 0; i < len(payload); i += maxPayload {
		end := i + maxPayload
		if end > len(payload) {
			end = len(payload)
		}
		more := 1
		if end >= len(payload) {
			more = 0
		}
		var b strings.Builder
		if i == 0 {
			b.WriteString(apcStart)
			b.WriteString(header(p, more, compression))
			b.WriteByte(';')
		} else {
			fmt.Fprintf(&b, "%sm=%d;", apcStart, more)
		}
		b.WriteString(base64.StdEncoding.EncodeToString(payload[i:end]))
		b.WriteString(apcEnd)
		chunks = append(chunks, Chunk(b.String()))
	}
	return chunks, nil
}

func header(p TransmitParams, more int, compression string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "a=%c,i=%d,f=%d,t=%c%s,q=%d,m=%d",
		transmitAction(p.WithPlacement), p.ID, p.Format, p.Transmission, compression, p.Quiet, more)
	if p.PlacementID != 0 {
		fmt.Fprintf(&b, ",p=%d", p.PlacementID)
	}
	if p.WithPlacement {
		fmt.Fprintf(&b, ",c=%d,r=%d,z=%d", p.Cols, p.Rows, p.Z)
		if p.VirtualPlacement {
			b.WriteString(",U=1")
		}
	}
	return b.String()
}

func transmitAction(withPlacement bool) byte {
	if withPlacement {
		return 'T' // a=T : transmit and put in one command
	}
	return 't'
}

// PutParams configures a standalone PUT command (a=p): re-display an
// already-transmitted image without resending pixels.
type PutParams struct {
	ID               uint32
	PlacementID      uint32
	Cols, Rows       int
	Z                int
	VirtualPlacement bool
	Quiet            Quiet
}

// BuildPut returns the APC sequence for a standalone PUT command.
func BuildPut(p PutParams) Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "%sa=p,i=%d,c=%d,r=%d,z=%d,q=%d", apcStart, p.ID, p.Cols, p.Rows, p.Z, p.Quiet)
	if p.PlacementID != 0 {
		fmt.Fprintf(&b, ",p=%d", p.PlacementID)
	}
	if p.VirtualPlacement {
		b.WriteString(",U=1")
	}
	b.WriteByte(';')
	b.WriteString(apcEnd)
	return Chunk(b.String())
}

// DeleteParams configures a DELETE command (a=d).
type DeleteParams struct {
	ID          uint32
	PlacementID uint32 // 0 with All=false deletes by id only
	All         bool   // d=A: delete all placements/images
	FreeData    bool   // uppercase delete variant also frees transmitted data
}

// BuildDelete returns the APC sequence for a DELETE command.
func BuildDelete(p DeleteParams) Chunk {
	key := deleteKey(p)
	var b strings.Builder
	fmt.Fprintf(&b, "%sa=d,d=%c", apcStart, key)
	if !p.All {
		fmt.Fprintf(&b, ",i=%d", p.ID)
		if p.PlacementID != 0 {
			fmt.Fprintf(&b, ",p=%d", p.PlacementID)
		}
	}
	b.WriteByte(';')
	b.WriteString(apcEnd)
	return Chunk(b.String())
}

func deleteKey(p DeleteParams) byte {
	switch {
	case p.All && p.FreeData:
		return 'A'
	case p.All:
		return 'a'
	case p.PlacementID != 0 && p.FreeData:
		return 'P'
	case p.PlacementID != 0:
		return 'p'
	case p.FreeData:
		return 'I'
	default:
		return 'i'
	}
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Response is a parsed terminal acknowledgement. imgplace never
// interprets responses beyond recognizing success vs a named error.
type Response struct {
	ID      uint32
	OK      bool
	Message string
}

// ParseResponse parses a Kitty graphics response APC sequence of the
// form "\x1b_Gi=<id>;<OK|message>\x1b\\". Malformed input is reported as
// IOError since a response the terminal sent but we can't parse is a
// transport-layer problem, not a caller mistake.
func ParseResponse(raw string) (Response, error) {
	body := raw
	body = strings.TrimPrefix(body, apcStart)
	body = strings.TrimSuffix(body, apcEnd)
	parts := strings.SplitN(body, ";", 2)
	if len(parts) != 2 {
		return Response{}, ikerr.New(ikerr.IOError, "protocol.ParseResponse")
	}

	var id uint32
	for _, kv := range strings.Split(parts[0], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == "i" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return Response{}, ikerr.Wrap(ikerr.IOError, "protocol.ParseResponse", err)
			}
			id = uint32(n)
		}
	}

	msg := parts[1]
	return Response{ID: id, OK: msg == "OK", Message: msg}, nil
}
