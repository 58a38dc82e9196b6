// Package wire implements the length-prefixed JSON framing and the request
// and response schemas the IPC server exchanges with callers (§4.1, §6).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vasplatform/modelcontainer/internal/constants"
)

// ErrOversize is returned by ReadFrame when a declared payload length
// exceeds constants.MaxMessageSize. Per §4.1 this is a framing-level
// failure: the caller must close the connection, not answer in-band.
var ErrOversize = fmt.Errorf("wire: frame exceeds max message size of %d bytes", constants.MaxMessageSize)

// ReadFrame reads one [length:u32 big-endian][payload] frame from r. It
// returns io.EOF unchanged when r is exhausted before any bytes of a new
// frame are read, so callers can distinguish "no more requests" from a
// truncated frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [constants.LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > constants.MaxMessageSize {
		return nil, ErrOversize
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: short read on payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes payload as one [length:u32 big-endian][payload] frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > constants.MaxMessageSize {
		return ErrOversize
	}

	var header [constants.LengthPrefixSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}
