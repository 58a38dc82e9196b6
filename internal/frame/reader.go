// Package frame implements C1: read-only access to the video kernel's
// shared-memory frame regions. A Reader never retains a reference to the
// underlying mapping past a single ReadFrame call (§4.3, §9).
package frame

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vasplatform/modelcontainer/internal/constants"
	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// Reader implements interfaces.FrameSource by mapping the referenced path
// read-only, copying the declared number of bytes into a private buffer,
// and releasing the mapping and file descriptor before returning.
type Reader struct {
	logger interfaces.Logger
}

// NewReader creates a frame reader. logger may be nil.
func NewReader(logger interfaces.Logger) *Reader {
	return &Reader{logger: logger}
}

// ExpectedSize returns the number of bytes a frame of the given metadata
// must occupy. For NV12 that is a full-resolution luma plane plus a
// half-resolution interleaved chroma plane (GLOSSARY).
func ExpectedSize(meta interfaces.FrameMetadata) (int64, error) {
	if meta.Width <= 0 || meta.Height <= 0 {
		return 0, fmt.Errorf("frame: invalid dimensions %dx%d", meta.Width, meta.Height)
	}
	switch meta.Format {
	case "NV12":
		luma := int64(meta.Width) * int64(meta.Height)
		chroma := luma / constants.ChromaPlaneDivisor
		return luma + chroma, nil
	default:
		return 0, fmt.Errorf("frame: unsupported format %q", meta.Format)
	}
}

// ReadFrame opens reference read-only, maps it read-only over its declared
// length, copies expected_size(meta) bytes into a freshly allocated buffer,
// then unmaps and closes before returning. It never writes to the region,
// never holds the mapping across the call, and never caches by reference.
func (r *Reader) ReadFrame(reference string, meta interfaces.FrameMetadata) ([]byte, error) {
	expected, err := ExpectedSize(meta)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(reference, os.O_RDONLY, 0)
	if err != nil {
		if r.logger != nil {
			r.logger.Debug("frame region open failed", "reference", reference, "error", err.Error())
		}
		return nil, fmt.Errorf("frame: open %s: %w", reference, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("frame: stat %s: %w", reference, err)
	}
	if info.Size() != expected {
		return nil, fmt.Errorf("frame: size mismatch for %s: region is %d bytes, expected %d", reference, info.Size(), expected)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(expected), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("frame: mmap %s: %w", reference, err)
	}

	buf := make([]byte, expected)
	copy(buf, mapped)

	if err := unix.Munmap(mapped); err != nil {
		if r.logger != nil {
			r.logger.Warn("frame region unmap failed", "reference", reference, "error", err.Error())
		}
	}

	return buf, nil
}
