package constants

import "time"

// Wire protocol limits (§4.1, §6).
const (
	// MaxMessageSize is the largest accepted framed payload. Larger frames
	// are a protocol error: the connection is closed without a response.
	MaxMessageSize = 10 << 20 // 10 MiB

	// LengthPrefixSize is the size in bytes of the big-endian u32 length
	// prefix that precedes every JSON payload on the wire.
	LengthPrefixSize = 4

	// SocketMode restricts the listener socket to owner read/write only.
	SocketMode = 0o600
)

// Connection and shutdown timing (§5, §4.8).
const (
	// ConnectionIODeadline bounds both the read and write phase of a single
	// connection. Exceeding it closes the connection without a response.
	ConnectionIODeadline = 30 * time.Second

	// DrainGracePeriod is how long the orchestrator waits for in-flight
	// handlers to finish after a shutdown signal before forcing the socket
	// closed.
	DrainGracePeriod = 5 * time.Second
)

// Post-processing defaults (§4.2 step 5, §8).
const (
	// MaxDetectionsPerResponse caps reply size regardless of how many raw
	// detections a model produces.
	MaxDetectionsPerResponse = 1000
)

// NV12 plane layout (GLOSSARY).
const (
	// ChromaPlaneDivisor expresses that NV12's interleaved half-resolution
	// chroma plane is half the size of the full-resolution luma plane.
	ChromaPlaneDivisor = 2
)
