//go:build linux

package shm

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// shmDir is where glibc's shm_open places POSIX objects on Linux; opening
// the path directly is equivalent and lets the name stay a plain file name.
const shmDir = "/dev/shm"

func objectPath(name string) string {
	return filepath.Join(shmDir, name)
}

// Map creates or attaches the named object and maps it read/write.
//
// Creator path: open with O_CREAT|O_EXCL, then ftruncate to opts.Size.
// Losing the creation race (EEXIST) falls back to attach semantics. Any
// failure after a successful exclusive creation unlinks the fresh object
// before returning, so a failed Map never leaks an orphan name.
//
// Attach path: open the existing object without truncation and map its
// actual size as reported by fstat.
func Map(opts Options) (*Segment, error) {
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	path := objectPath(opts.Name)

	var (
		fd      int
		err     error
		created bool
		size    = opts.Size
	)

	if opts.AsCreator {
		fd, err = unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, Mode)
		switch {
		case err == nil:
			created = true
			if err := unix.Ftruncate(fd, int64(size)); err != nil {
				_ = unix.Close(fd)
				_ = unix.Unlink(path)
				return nil, fmt.Errorf("shm: ftruncate %s to %d: %w", opts.Name, size, err)
			}
		case err == unix.EEXIST:
			// Lost the creation race; attach to the existing object.
		default:
			return nil, fmt.Errorf("shm: create %s: %w", opts.Name, err)
		}
	}

	if !created {
		fd, err = unix.Open(path, unix.O_RDWR, Mode)
		if err != nil {
			return nil, fmt.Errorf("shm: open %s: %w", opts.Name, err)
		}
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("shm: fstat %s: %w", opts.Name, err)
		}
		size = uint64(st.Size)
		if size == 0 {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("shm: %s exists but has zero size", opts.Name)
		}
	}

	mem, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		if created {
			_ = unix.Unlink(path)
		}
		return nil, fmt.Errorf("shm: mmap %s (%d bytes): %w", opts.Name, size, err)
	}

	return &Segment{
		mem:     mem,
		fd:      fd,
		name:    opts.Name,
		path:    path,
		created: created,
	}, nil
}

// Close unmaps the region and closes the descriptor. Idempotent. It does
// not unlink; the caller decides that based on segment ownership.
func (s *Segment) Close() error {
	// Map never hands out a mapped segment without a valid descriptor,
	// so the mapping gates both. This keeps a never-mapped zero value
	// from closing descriptor 0.
	if s.mem == nil {
		return nil
	}
	var firstErr error
	if err := unix.Munmap(s.mem); err != nil {
		firstErr = fmt.Errorf("shm: munmap %s: %w", s.name, err)
	}
	s.mem = nil
	if err := unix.Close(s.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shm: close %s: %w", s.name, err)
	}
	s.fd = -1
	return firstErr
}

// Unlink removes the OS object's name. Only the creating side should call
// it; a missing name is not an error.
func (s *Segment) Unlink() error {
	if err := unix.Unlink(s.path); err != nil && err != unix.ENOENT {
		return fmt.Errorf("shm: unlink %s: %w", s.name, err)
	}
	return nil
}

// Exists reports whether the named object currently exists. Used by
// health probes; the result is a snapshot, not a guarantee.
func Exists(name string) bool {
	if err := ValidateName(name); err != nil {
		return false
	}
	var st unix.Stat_t
	return unix.Stat(objectPath(name), &st) == nil
}

// Remove unlinks a named object without mapping it; test cleanup helper.
func Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := unix.Unlink(objectPath(name)); err != nil && err != unix.ENOENT {
		return fmt.Errorf("shm: unlink %s: %w", name, err)
	}
	return nil
}
