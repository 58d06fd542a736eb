package segmenter

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
)

// PlaylistVersion is the #EXT-X-VERSION written to every manifest.
// Version 3 permits fractional #EXTINF durations.
const PlaylistVersion = 3

// Manifest is the in-memory HLS media playlist: header metadata plus the
// entries currently advertised, oldest first.
type Manifest struct {
	Version        int
	TargetDuration float64
	MediaSequence  int64
	// PlaylistType is written as #EXT-X-PLAYLIST-TYPE when non-empty ("EVENT" or "VOD").
	PlaylistType string
	Ended        bool

	entries      []Entry
	nextSequence uint64
}

// NewManifest returns an empty manifest advertising targetDuration seconds.
func NewManifest(targetDuration float64, playlistType string) *Manifest {
	return &Manifest{
		Version:        PlaylistVersion,
		TargetDuration: targetDuration,
		PlaylistType:   playlistType,
	}
}

// Append pushes e to the tail. Sequencing is the caller's responsibility;
// entries are expected to arrive with consecutive sequence numbers.
func (m *Manifest) Append(e Entry) error {
	if m.Ended {
		return ErrManifestEnded
	}
	m.entries = append(m.entries, e)
	m.nextSequence = e.Sequence + 1
	return nil
}

// Trim drops the oldest entries until at most window remain and returns the
// dropped entries, oldest first. A window of 0 keeps everything.
func (m *Manifest) Trim(window int) []Entry {
	if m.Ended || window <= 0 || len(m.entries) <= window {
		return nil
	}
	n := len(m.entries) - window
	evicted := make([]Entry, n)
	copy(evicted, m.entries[:n])
	m.entries = append(m.entries[:0], m.entries[n:]...)
	return evicted
}

// RecomputeMediaSequence sets MediaSequence to the sequence number of the
// oldest advertised entry. It never moves backwards.
func (m *Manifest) RecomputeMediaSequence() {
	seq := int64(m.nextSequence) - int64(len(m.entries))
	if seq > m.MediaSequence {
		m.MediaSequence = seq
	}
}

// MarkEnded flags the manifest as complete. Calling it again has no effect.
func (m *Manifest) MarkEnded() {
	m.Ended = true
}

// Len returns the number of advertised entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the advertised entries, oldest first.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Encode renders the manifest as an HLS media playlist.
func (m *Manifest) Encode() ([]byte, error) {
	var b bytes.Buffer
	if _, err := m.WriteTo(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteTo renders the manifest to w. Rendering is validated up front so that
// nothing is written for a manifest that cannot be represented.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	for _, e := range m.entries {
		if err := validateEntry(e); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrSerializeFailed, err)
		}
	}

	var b strings.Builder

	version := m.Version
	if version == 0 {
		version = PlaylistVersion
	}
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", version)
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", m.targetDurationSeconds())
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", m.MediaSequence)
	if m.PlaylistType != "" {
		fmt.Fprintf(&b, "#EXT-X-PLAYLIST-TYPE:%s\n", m.PlaylistType)
	}

	for _, e := range m.entries {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", e.Duration)
		b.WriteString(e.URI)
		b.WriteString("\n")
	}

	if m.Ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	n, err := io.WriteString(w, b.String())
	if err != nil {
		return int64(n), fmt.Errorf("%w: %w", ErrIOFailed, err)
	}
	return int64(n), nil
}

// targetDurationSeconds returns the #EXT-X-TARGETDURATION value: the ceiling
// of the configured target, or of the longest entry when no target is set.
func (m *Manifest) targetDurationSeconds() int {
	if m.TargetDuration > 0 {
		return int(math.Ceil(m.TargetDuration))
	}
	max := 0.0
	for _, e := range m.entries {
		if e.Duration > max {
			max = e.Duration
		}
	}
	if max <= 0 {
		return 1
	}
	return int(math.Ceil(max))
}

func validateEntry(e Entry) error {
	if math.IsNaN(e.Duration) || math.IsInf(e.Duration, 0) || e.Duration < 0 {
		return fmt.Errorf("entry %d: invalid duration %v", e.Sequence, e.Duration)
	}
	if e.URI == "" || strings.ContainsAny(e.URI, "\r\n") {
		return fmt.Errorf("entry %d: invalid uri %q", e.Sequence, e.URI)
	}
	return nil
}
