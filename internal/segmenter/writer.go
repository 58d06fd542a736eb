package segmenter

import (
	"fmt"
)

// WriteManifest renders m and replaces the file at path through opener.
// The first failure is returned, classified as ErrOpenFailed,
// ErrSerializeFailed or ErrIOFailed. Nothing is retried.
func WriteManifest(m *Manifest, opener SinkOpener, path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	sink, err := opener.Open(path, ModeManifest)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}

	if _, err := sink.Write(data); err != nil {
		_ = sink.Close()
		return fmt.Errorf("%w: write %s: %w", ErrIOFailed, path, err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIOFailed, path, err)
	}
	return nil
}
