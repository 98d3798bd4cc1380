//go:build !linux

package shm

// Map is unavailable off Linux; POSIX shared memory is the only backend.
func Map(opts Options) (*Segment, error) {
	return nil, ErrUnsupportedPlatform
}

// Close is a no-op off Linux.
func (s *Segment) Close() error { return nil }

// Unlink is a no-op off Linux.
func (s *Segment) Unlink() error { return nil }

// Exists always reports false off Linux.
func Exists(name string) bool { return false }

// Remove is a no-op off Linux.
func Remove(name string) error { return ErrUnsupportedPlatform }
