// Package shm contains the platform-specific lifecycle of POSIX named
// shared-memory objects: name validation, create-or-attach negotiation,
// sizing, mapping and teardown. Queue semantics live above, in pkg/queue.
package shm

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the permission mode used for both creation and open.
const Mode = 0666

var (
	// ErrInvalidName reports a shared-memory name that does not follow
	// POSIX rules: it must start with '/' and contain no further '/'.
	ErrInvalidName = errors.New("shm: invalid shared memory name")

	// ErrUnsupportedPlatform reports a build target without POSIX
	// shared memory.
	ErrUnsupportedPlatform = errors.New("shm: platform not supported")
)

// Options describes one create-or-attach request.
type Options struct {
	// Name is the POSIX object name, e.g. "/omnirt_rpc_req_chat".
	Name string
	// Size is the total object size in bytes. Used to ftruncate on
	// creation; ignored on attach, where the existing object's size wins.
	Size uint64
	// AsCreator requests exclusive creation. On name collision the call
	// falls back to attach semantics instead of failing.
	AsCreator bool
}

// Segment is one mapped shared-memory object.
type Segment struct {
	mem     []byte
	fd      int
	name    string
	path    string
	created bool
}

// Bytes returns the mapped region. Valid until Close.
func (s *Segment) Bytes() []byte { return s.mem }

// Size returns the mapped length in bytes.
func (s *Segment) Size() uint64 { return uint64(len(s.mem)) }

// Name returns the POSIX object name.
func (s *Segment) Name() string { return s.name }

// Created reports whether this mapping created the OS object.
func (s *Segment) Created() bool { return s.created }

// ValidateName checks POSIX shared-memory naming rules.
func ValidateName(name string) error {
	if len(name) < 2 || name[0] != '/' || strings.Contains(name[1:], "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
