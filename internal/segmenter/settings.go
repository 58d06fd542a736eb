package segmenter

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	DefaultLocation         = "segment%05d.ts"
	DefaultPlaylistLocation = "playlist.m3u8"
	DefaultMaxFiles         = 10
	DefaultTargetDuration   = 15
	DefaultPlaylistLength   = 5
)

// Settings configures a Controller.
type Settings struct {
	// Location is the segment path template; Placeholder is replaced by the sequence number.
	Location string
	// PlaylistLocation is where the manifest is written.
	PlaylistLocation string
	// PlaylistRoot, when set, prefixes the base name of every segment in the manifest.
	PlaylistRoot string
	// PlaylistLength bounds the entries advertised in the manifest. 0 keeps every entry.
	PlaylistLength int
	// MaxFiles bounds the closed segment files kept on disk. 0 never deletes.
	MaxFiles int
	// TargetDuration is the advertised segment duration in seconds. It is not enforced.
	TargetDuration float64
	// PlaylistType is "", "EVENT" or "VOD".
	PlaylistType string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Location:         DefaultLocation,
		PlaylistLocation: DefaultPlaylistLocation,
		PlaylistLength:   DefaultPlaylistLength,
		MaxFiles:         DefaultMaxFiles,
		TargetDuration:   DefaultTargetDuration,
	}
}

// Validate checks s and normalises PlaylistType to upper case.
func (s *Settings) Validate() error {
	switch {
	case s.Location == "":
		return fmt.Errorf("%w: segment location is empty", ErrInvalidSettings)
	case s.PlaylistLocation == "":
		return fmt.Errorf("%w: playlist location is empty", ErrInvalidSettings)
	case s.PlaylistLength < 0:
		return fmt.Errorf("%w: playlist length %d is negative", ErrInvalidSettings, s.PlaylistLength)
	case s.MaxFiles < 0:
		return fmt.Errorf("%w: max files %d is negative", ErrInvalidSettings, s.MaxFiles)
	case s.TargetDuration < 0:
		return fmt.Errorf("%w: target duration %v is negative", ErrInvalidSettings, s.TargetDuration)
	}

	s.PlaylistType = strings.ToUpper(s.PlaylistType)
	switch s.PlaylistType {
	case "", "EVENT", "VOD":
	default:
		return fmt.Errorf("%w: unknown playlist type %q", ErrInvalidSettings, s.PlaylistType)
	}
	return nil
}

// entryURI returns how the manifest refers to the segment at path.
func (s Settings) entryURI(path string) string {
	if s.PlaylistRoot != "" {
		return strings.TrimRight(s.PlaylistRoot, "/") + "/" + filepath.Base(path)
	}
	rel, err := filepath.Rel(filepath.Dir(s.PlaylistLocation), path)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
