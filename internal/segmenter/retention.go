package segmenter

// Retention tracks segment files still on disk, oldest first, and decides
// which must be deleted to stay within a bounded window.
type Retention struct {
	paths []string
}

// Push records a newly closed segment file and returns the files that fell
// out of a window of the given size, oldest first. A window of 0 never deletes.
func (r *Retention) Push(path string, window int) []string {
	r.paths = append(r.paths, path)
	if window <= 0 || len(r.paths) <= window {
		return nil
	}
	n := len(r.paths) - window
	expired := make([]string, n)
	copy(expired, r.paths[:n])
	r.paths = append(r.paths[:0], r.paths[n:]...)
	return expired
}

// Len returns the number of retained files.
func (r *Retention) Len() int {
	return len(r.paths)
}

// Paths returns a copy of the retained files, oldest first.
func (r *Retention) Paths() []string {
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}
