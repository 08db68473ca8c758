// Package archive streams members out of uploaded zip containers while
// enforcing size and member-count ceilings.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrCorrupt reports a container that cannot be parsed at all.
	// An empty archive is not corrupt; it simply yields zero members.
	ErrCorrupt = errors.New("archive: corrupt container")
	// ErrTooLarge reports a container exceeding the configured ceilings.
	ErrTooLarge = errors.New("archive: size limit exceeded")
)

// Limits bound how much an archive may expand during extraction.
type Limits struct {
	MaxMembers     int
	MaxMemberBytes int64
	MaxTotalBytes  int64
}

// DefaultLimits returns ceilings suitable for chat-sized uploads.
func DefaultLimits() Limits {
	return Limits{
		MaxMembers:     256,
		MaxMemberBytes: 16 << 20,
		MaxTotalBytes:  64 << 20,
	}
}

// Member is one entry inside a container, produced transiently during
// iteration.
type Member struct {
	Path string
	Data []byte
}

// Archive iterates the members of an opened container. It is not restartable:
// once consumed, the caller must reopen from the original buffer.
type Archive struct {
	files  []*zip.File
	idx    int
	limits Limits
	read   int64
}

// Open parses raw bytes as a zip container. The byte slice must stay valid
// for the lifetime of the returned Archive.
func Open(data []byte, limits Limits) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		files = append(files, f)
	}
	if limits.MaxMembers > 0 && len(files) > limits.MaxMembers {
		return nil, fmt.Errorf("%w: %d members", ErrTooLarge, len(files))
	}
	return &Archive{files: files, limits: limits}, nil
}

// Next yields the next member. It returns io.EOF when the archive is
// exhausted and ErrTooLarge when a member or the running total exceeds the
// configured ceilings.
func (a *Archive) Next() (Member, error) {
	if a.idx >= len(a.files) {
		return Member{}, io.EOF
	}
	f := a.files[a.idx]
	a.idx++

	if a.limits.MaxMemberBytes > 0 && int64(f.UncompressedSize64) > a.limits.MaxMemberBytes {
		return Member{}, fmt.Errorf("%w: member %s declares %d bytes", ErrTooLarge, f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return Member{}, fmt.Errorf("%w: open %s: %v", ErrCorrupt, f.Name, err)
	}
	defer rc.Close()

	// Read one byte past the declared size to catch liars in the header.
	limit := int64(f.UncompressedSize64) + 1
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return Member{}, fmt.Errorf("%w: read %s: %v", ErrCorrupt, f.Name, err)
	}
	if int64(len(data)) > int64(f.UncompressedSize64) {
		return Member{}, fmt.Errorf("%w: member %s larger than declared", ErrTooLarge, f.Name)
	}

	a.read += int64(len(data))
	if a.limits.MaxTotalBytes > 0 && a.read > a.limits.MaxTotalBytes {
		return Member{}, fmt.Errorf("%w: total extracted bytes exceed %d", ErrTooLarge, a.limits.MaxTotalBytes)
	}

	return Member{Path: f.Name, Data: data}, nil
}
