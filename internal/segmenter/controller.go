package segmenter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"hls-segmenter/internal/platform/metrics"
)

// Controller drives the segment lifecycle: it names and opens segment files,
// turns closed fragments into manifest entries, deletes files that leave the
// retention window and rewrites the manifest.
//
// Settings and lifecycle state are guarded by separate locks. A transition
// takes the settings lock before the lifecycle lock, reads the settings it
// needs, releases the settings lock and keeps the lifecycle lock until the
// transition completes.
type Controller struct {
	settingsMu sync.RWMutex
	settings   Settings

	mu    sync.Mutex
	state *runState // nil while stopped

	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

// runState is the lifecycle state while started.
type runState struct {
	manifest     *Manifest
	retention    Retention
	current      *Segment
	nextSequence uint64
	rendered     bool // a manifest has been written at least once
}

// NewController returns a stopped Controller. log defaults to slog.Default
// and m may be nil to disable metric recording.
func NewController(settings Settings, store Store, log *slog.Logger, m *metrics.Metrics) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		settings: settings,
		store:    store,
		log:      log,
		metrics:  m,
	}, nil
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// UpdateSettings applies fn to a copy of the settings and stores it if valid.
// Window sizes and templates take effect on the next transition; the target
// duration and playlist type on the next Start.
func (c *Controller) UpdateSettings(fn func(*Settings)) error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	s := c.settings
	fn(&s)
	if err := s.Validate(); err != nil {
		return err
	}
	c.settings = s
	return nil
}

// lock snapshots the settings, then acquires the lifecycle lock and returns
// the snapshot for the transition. The settings lock is released before the
// lifecycle lock is requested, so neither waits on the other. The caller must
// release c.mu.
func (c *Controller) lock() Settings {
	s := c.Settings()
	c.mu.Lock()
	return s
}

// Start moves the controller to started with an empty manifest and the
// sequence counter at zero. Starting a started controller has no effect.
func (c *Controller) Start() {
	cfg := c.lock()
	defer c.mu.Unlock()

	if c.state != nil {
		return
	}
	c.state = &runState{
		manifest: NewManifest(cfg.TargetDuration, cfg.PlaylistType),
	}
	c.log.Info("segmenter started",
		slog.String("location", cfg.Location),
		slog.String("playlist_location", cfg.PlaylistLocation),
		slog.Int("playlist_length", cfg.PlaylistLength),
		slog.Int("max_files", cfg.MaxFiles),
		slog.Float64("target_duration", cfg.TargetDuration))
	if !HasPlaceholder(cfg.Location) {
		c.log.Warn("segment location has no sequence placeholder, every segment overwrites the last",
			slog.String("location", cfg.Location))
	}
}

// RequestLocation names the next segment, opens its sink and makes it the
// current segment. The returned writer receives the fragment bytes; the
// controller closes it when the fragment closes.
func (c *Controller) RequestLocation() (string, io.Writer, error) {
	cfg := c.lock()
	defer c.mu.Unlock()
	return c.requestLocationLocked(cfg)
}

// FragmentOpened records the running time at which the current segment started.
func (c *Controller) FragmentOpened(at time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fragmentOpenedLocked(at)
}

// OpenSegment is RequestLocation followed by FragmentOpened as one transition.
func (c *Controller) OpenSegment(at time.Duration) (string, io.Writer, error) {
	cfg := c.lock()
	defer c.mu.Unlock()

	path, w, err := c.requestLocationLocked(cfg)
	if err != nil {
		return "", nil, err
	}
	if err := c.fragmentOpenedLocked(at); err != nil {
		return "", nil, err
	}
	return path, w, nil
}

// FragmentClosed closes the current segment at running time at, appends it
// to the manifest, applies both retention windows and rewrites the manifest.
//
// Malformed events are rejected without side effects. Once the entry has been
// appended the in-memory state is never rolled back and the manifest is always
// rewritten: a failure to close the segment file or to write the manifest is
// returned, and the next successful write carries the entry.
func (c *Controller) FragmentClosed(at time.Duration) error {
	cfg := c.lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return ErrNotStarted
	}
	if err := c.checkCloseLocked(at); err != nil {
		return err
	}
	closeErr := c.closeSegmentLocked(cfg, at)
	return errors.Join(closeErr, c.writeManifestLocked(cfg))
}

// Stop ends the playlist and moves the controller to stopped. A segment
// still open is closed at running time at, or discarded along with its file
// when the close is rejected. If the manifest holds or has ever published an
// entry it is marked ended and written one last time; otherwise nothing is
// written. Stopping a stopped controller has no effect.
func (c *Controller) Stop(at time.Duration) error {
	cfg := c.lock()
	defer c.mu.Unlock()

	st := c.state
	if st == nil {
		return nil
	}
	defer func() { c.state = nil }()

	closable := st.current != nil && st.current.OpenedAt != nil
	if !st.rendered && !closable {
		c.discardCurrentLocked()
		c.log.Info("segmenter stopped without publishing a playlist")
		return nil
	}

	var errs []error
	if st.current != nil {
		if err := c.checkCloseLocked(at); err != nil {
			errs = append(errs, err)
			c.discardCurrentLocked()
		} else if err := c.closeSegmentLocked(cfg, at); err != nil {
			errs = append(errs, err)
		}
	}
	if !st.rendered && st.manifest.Len() == 0 {
		c.log.Info("segmenter stopped without publishing a playlist")
		return errors.Join(errs...)
	}
	st.manifest.MarkEnded()
	if err := c.writeManifestLocked(cfg); err != nil {
		errs = append(errs, err)
	}

	c.log.Info("segmenter stopped",
		slog.Int64("media_sequence", st.manifest.MediaSequence),
		slog.Int("entries", st.manifest.Len()))
	return errors.Join(errs...)
}

// Status returns a snapshot of the lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	if st == nil {
		return Status{State: StateStopped, Entries: []Entry{}}
	}
	return Status{
		State:         StateStarted,
		NextSequence:  st.nextSequence,
		MediaSequence: st.manifest.MediaSequence,
		Entries:       st.manifest.Entries(),
		FilesOnDisk:   st.retention.Len(),
		SegmentOpen:   st.current != nil,
		Ended:         st.manifest.Ended,
	}
}

func (c *Controller) requestLocationLocked(cfg Settings) (string, io.Writer, error) {
	st := c.state
	if st == nil {
		return "", nil, ErrNotStarted
	}
	if st.current != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrSegmentAlreadyOpen, st.current.Path)
	}

	path := SegmentName(cfg.Location, st.nextSequence)
	sink, err := c.store.Open(path, ModeSegment)
	if err != nil {
		c.log.Error("could not open segment file for writing",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return "", nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}

	st.current = &Segment{Sequence: st.nextSequence, Path: path, sink: sink}
	st.nextSequence++
	if c.metrics != nil {
		c.metrics.IncSegmentsOpened()
	}
	c.log.Debug("segment opened",
		slog.Uint64("sequence", st.current.Sequence),
		slog.String("path", path))
	return path, sink, nil
}

func (c *Controller) fragmentOpenedLocked(at time.Duration) error {
	st := c.state
	if st == nil {
		return ErrNotStarted
	}
	if st.current == nil {
		return ErrNoOpenSegment
	}
	st.current.OpenedAt = &at
	return nil
}

// checkCloseLocked rejects a close of the current segment at running time
// at without changing any state.
func (c *Controller) checkCloseLocked(at time.Duration) error {
	seg := c.state.current
	if seg == nil {
		return ErrNoOpenSegment
	}
	if seg.OpenedAt == nil {
		return fmt.Errorf("%w: %s", ErrMissingOpenTimestamp, seg.Path)
	}
	if at < *seg.OpenedAt {
		return fmt.Errorf("%w: %s opened at %s, closed at %s", ErrNegativeDuration, seg.Path, *seg.OpenedAt, at)
	}
	return nil
}

// closeSegmentLocked turns the current segment into a manifest entry and
// applies both windows. checkCloseLocked must have accepted at. The state
// change is committed even when closing the segment file fails; that error
// is returned for the caller to report after writing the manifest.
func (c *Controller) closeSegmentLocked(cfg Settings, at time.Duration) error {
	st := c.state
	seg := st.current

	entry := Entry{
		Sequence: seg.Sequence,
		Path:     seg.Path,
		URI:      cfg.entryURI(seg.Path),
		Duration: (at - *seg.OpenedAt).Seconds(),
	}
	if err := st.manifest.Append(entry); err != nil {
		return err
	}

	var closeErr error
	if err := seg.sink.Close(); err != nil {
		c.log.Error("could not close segment file",
			slog.String("path", seg.Path),
			slog.String("error", err.Error()))
		closeErr = fmt.Errorf("%w: close %s: %w", ErrIOFailed, seg.Path, err)
	}
	st.current = nil
	if c.metrics != nil {
		c.metrics.IncSegmentsClosed()
	}

	for _, e := range st.manifest.Trim(cfg.PlaylistLength) {
		c.log.Debug("segment evicted from playlist",
			slog.Uint64("sequence", e.Sequence),
			slog.String("path", e.Path))
	}
	st.manifest.RecomputeMediaSequence()

	for _, path := range st.retention.Push(seg.Path, cfg.MaxFiles) {
		c.deleteSegment(path)
	}
	if c.metrics != nil {
		c.metrics.SetRetained(st.manifest.Len(), st.retention.Len())
	}

	c.log.Debug("segment closed",
		slog.Uint64("sequence", entry.Sequence),
		slog.Float64("duration", entry.Duration),
		slog.Int64("media_sequence", st.manifest.MediaSequence))
	return closeErr
}

// deleteSegment removes an expired segment file. Failures are logged and the
// file is left behind.
func (c *Controller) deleteSegment(path string) {
	if err := c.store.Remove(path); err != nil {
		c.log.Warn("could not delete segment file",
			slog.String("path", path),
			slog.String("error", fmt.Errorf("%w: %w", ErrDeleteFailed, err).Error()))
		if c.metrics != nil {
			c.metrics.IncSegmentDeleteErrors()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.IncSegmentsDeleted()
	}
}

func (c *Controller) writeManifestLocked(cfg Settings) error {
	st := c.state
	err := WriteManifest(st.manifest, c.store, cfg.PlaylistLocation)
	if c.metrics != nil {
		c.metrics.ObserveManifestWrite(err)
	}
	if err != nil {
		c.log.Error("could not write playlist",
			slog.String("path", cfg.PlaylistLocation),
			slog.String("error", err.Error()))
		return err
	}
	st.rendered = true
	c.log.Debug("playlist written",
		slog.String("path", cfg.PlaylistLocation),
		slog.Int("entries", st.manifest.Len()),
		slog.Bool("ended", st.manifest.Ended))
	return nil
}

// discardCurrentLocked closes and removes a segment that will never be
// published. Retention never tracked it.
func (c *Controller) discardCurrentLocked() {
	st := c.state
	seg := st.current
	if seg == nil {
		return
	}
	st.current = nil
	if err := seg.sink.Close(); err != nil {
		c.log.Warn("could not close unpublished segment file",
			slog.String("path", seg.Path),
			slog.String("error", err.Error()))
	}
	if err := c.store.Remove(seg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.log.Warn("could not delete unpublished segment file",
			slog.String("path", seg.Path),
			slog.String("error", err.Error()))
		if c.metrics != nil {
			c.metrics.IncSegmentDeleteErrors()
		}
	}
}
