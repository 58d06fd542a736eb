package segmenter

import (
	"io"
	"time"
)

// Segment is the fragment currently being written. It is owned by the
// Controller from the moment its location is requested until it closes.
type Segment struct {
	Sequence uint64
	Path     string

	// OpenedAt is the pipeline running time at which the fragment opened.
	// It is nil until the pipeline reports the fragment as opened.
	OpenedAt *time.Duration

	sink io.WriteCloser
}

// Entry is one closed segment as advertised in the manifest.
type Entry struct {
	Sequence uint64  `json:"sequence"`
	Path     string  `json:"path"`
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
}

// State names the two lifecycle states of a Controller.
type State string

const (
	StateStopped State = "stopped"
	StateStarted State = "started"
)

// Status is a point-in-time view of a Controller, safe to hand to other goroutines.
type Status struct {
	State         State   `json:"state"`
	NextSequence  uint64  `json:"next_sequence"`
	MediaSequence int64   `json:"media_sequence"`
	Entries       []Entry `json:"entries"`
	FilesOnDisk   int     `json:"files_on_disk"`
	SegmentOpen   bool    `json:"segment_open"`
	Ended         bool    `json:"ended"`
}
