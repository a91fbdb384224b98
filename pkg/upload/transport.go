package upload

import "github.com/kittyplace/imgplace/pkg/protocol"

// TransportPolicy picks the KGP transmission medium (t=d/f/t) for one
// upload from the upload_method option.
type TransportPolicy struct {
	Method        string // "auto", "file", "stream", "temp-file"
	StreamMaxSize int64
	FileMaxSize   int64
	IsSSH         bool
}

// Medium resolves the policy to a concrete transmission medium.
// "stream" always sends base64 data in-band; "file"/"temp-file" send a
// path the terminal reads itself; "auto" streams when the terminal and
// imgplace do not share a filesystem (SSH) and sends a path otherwise.
func (p TransportPolicy) Medium() protocol.Transmission {
	switch p.Method {
	case "stream":
		return protocol.TransmissionDirect
	case "file":
		return protocol.TransmissionFile
	case "temp-file":
		return protocol.TransmissionTempFile
	default: // "auto"
		if p.IsSSH {
			return protocol.TransmissionDirect
		}
		return protocol.TransmissionFile
	}
}

// Budget returns the artifact byte budget for a medium: stream_max_size
// for direct in-band transmission, file_max_size for path-based media.
// The conversion cache is asked for an artifact within this budget
// before anything is transmitted.
func (p TransportPolicy) Budget(m protocol.Transmission) int64 {
	if m == protocol.TransmissionDirect {
		return p.StreamMaxSize
	}
	return p.FileMaxSize
}
