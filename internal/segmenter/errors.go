package segmenter

import "errors"

var (
	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrNotStarted is returned when a fragment event arrives while the controller is stopped.
	ErrNotStarted = errors.New("segmenter not started")

	// ErrSegmentAlreadyOpen is returned when a new location is requested before
	// the current segment has been closed.
	ErrSegmentAlreadyOpen = errors.New("segment already open")

	// ErrNoOpenSegment is returned for a fragment event that has no matching open segment.
	ErrNoOpenSegment = errors.New("no open segment")

	// ErrMissingOpenTimestamp is returned when a segment closes without ever being reported opened.
	ErrMissingOpenTimestamp = errors.New("segment has no open timestamp")

	// ErrNegativeDuration is returned when a segment closes before it opened.
	ErrNegativeDuration = errors.New("segment closed before it opened")

	// ErrManifestEnded is returned when mutating a manifest that has been marked ended.
	ErrManifestEnded = errors.New("manifest has ended")

	// ErrOpenFailed wraps failures to open a segment or manifest sink.
	ErrOpenFailed = errors.New("open failed")

	// ErrSerializeFailed wraps failures to render the manifest.
	ErrSerializeFailed = errors.New("serialize failed")

	// ErrIOFailed wraps failures writing or closing a sink.
	ErrIOFailed = errors.New("i/o failed")

	// ErrDeleteFailed wraps failures removing an evicted segment. It is only
	// ever logged; retention is best-effort.
	ErrDeleteFailed = errors.New("delete failed")
)
