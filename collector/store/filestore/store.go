package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/income"
)

// Sentinel errors for store operations
var (
	ErrReadFailed   = errors.New("checkpoint read failed")
	ErrDecodeFailed = errors.New("checkpoint decode failed")
	ErrWriteFailed  = errors.New("checkpoint write failed")
	ErrRemoveFailed = errors.New("checkpoint remove failed")
)

// samplesSuffix names the append-only file holding raw samples next to the checkpoint
const samplesSuffix = ".samples"

// Store implements collector.Store as a JSON checkpoint file plus an
// append-only JSON-lines file of raw samples.
//
// The checkpoint's SampleCount is authoritative: samples written past it by a
// save that never completed are ignored on load and cut off before the next append.
// A Store has a single owner and is not safe for concurrent use.
type Store struct {
	path string

	// samples file state as of the last checkpoint that was written
	committedCount int
	committedSize  int64
}

// New creates a store backed by the file at path. Files are created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path is the checkpoint file location
func (s *Store) Path() string { return s.path }

// SamplesPath is the raw samples file location
func (s *Store) SamplesPath() string { return s.path + samplesSuffix }

// Load returns the saved checkpoint, or nil when the file does not exist
func (s *Store) Load(_ context.Context) (*collector.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	var cp collector.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, s.path, err)
	}

	samples, size, err := s.loadSamples(cp.SampleCount)
	if err != nil {
		return nil, err
	}
	cp.Samples = samples
	s.committedCount, s.committedSize = len(samples), size
	return &cp, nil
}

// loadSamples reads the first n samples and the file size they occupy
func (s *Store) loadSamples(n int) ([]income.Sample, int64, error) {
	if n == 0 {
		return nil, 0, nil
	}

	f, err := os.Open(s.SamplesPath())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	defer f.Close()

	samples := make([]income.Sample, 0, n)
	dec := json.NewDecoder(f)
	for len(samples) < n {
		var sample income.Sample
		if err := dec.Decode(&sample); err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("%d of %d samples present", len(samples), n)
			}
			return nil, 0, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, s.SamplesPath(), err)
		}
		samples = append(samples, sample)
	}
	return samples, dec.InputOffset(), nil
}

// Save appends new samples, then replaces the checkpoint file atomically:
// a reader sees either the old checkpoint or the new one, never a torn write.
func (s *Store) Save(_ context.Context, cp collector.Checkpoint) error {
	size, err := s.appendSamples(cp.SamplesFrom(), cp.Samples)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	s.committedCount, s.committedSize = cp.SampleCount, size
	return nil
}

// appendSamples writes samples after the first from already committed ones,
// dropping whatever an unfinished save left behind. It returns the new file size.
func (s *Store) appendSamples(from int, samples []income.Sample) (int64, error) {
	if from == 0 && len(samples) == 0 {
		if err := os.Remove(s.SamplesPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		return 0, nil
	}

	base := int64(0)
	if from > 0 {
		if from != s.committedCount {
			return 0, fmt.Errorf("%w: samples start at %d, %d committed", ErrWriteFailed, from, s.committedCount)
		}
		base = s.committedSize
	}

	f, err := os.OpenFile(s.SamplesPath(), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer f.Close()

	if err := f.Truncate(base); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if _, err := f.Seek(base, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	enc := json.NewEncoder(f)
	for _, sample := range samples {
		if err := enc.Encode(sample); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return size, nil
}

// Clear removes the checkpoint and its samples. Missing files are not an error.
func (s *Store) Clear(_ context.Context) error {
	s.committedCount, s.committedSize = 0, 0
	for _, path := range []string{s.path, s.SamplesPath()} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrRemoveFailed, err)
		}
	}
	return nil
}
