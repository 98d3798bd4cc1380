package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/omnirt/shmq/internal/shm"
)

// SegmentInfo is a point-in-time snapshot of a named queue segment,
// decoded from a copy of the header. Head/Tail may already be stale by
// the time the caller looks at them.
type SegmentInfo struct {
	Name       string
	PoolSize   uint64
	ElemSize   uint64
	Head       uint64
	Tail       uint64
	Size       uint64
	UseMask    bool
	CreatorPID uint32
	TotalBytes uint64
}

func (i SegmentInfo) String() string {
	return fmt.Sprintf("name:%s cap:%d elem:%dB head:%d tail:%d size:%d mask:%v creator-pid:%d bytes:%d",
		i.Name, i.PoolSize, i.ElemSize, i.Head, i.Tail, i.Size, i.UseMask, i.CreatorPID, i.TotalBytes)
}

// InspectSegment reads the named queue segment's header without mapping
// or attaching to it. Intended for debugging tools; it never mutates the
// segment.
func InspectSegment(name string) (*SegmentInfo, error) {
	if err := shm.ValidateName(name); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join("/dev/shm", name))
	if err != nil {
		return nil, fmt.Errorf("queue: read segment %s: %w", name, err)
	}
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("queue: segment %s too small for a header (%d bytes)", name, len(raw))
	}
	hdr := (*QueueHeader)(unsafe.Pointer(&raw[0]))
	if !hdr.Initialized() {
		return nil, fmt.Errorf("queue: segment %s holds no initialized queue", name)
	}
	size := hdr.LoadTail() - hdr.LoadHead()
	if size > hdr.poolSize {
		size = hdr.poolSize
	}
	return &SegmentInfo{
		Name:       name,
		PoolSize:   hdr.poolSize,
		ElemSize:   hdr.elemSize,
		Head:       hdr.LoadHead(),
		Tail:       hdr.LoadTail(),
		Size:       size,
		UseMask:    hdr.useMask != 0,
		CreatorPID: hdr.creatorPID,
		TotalBytes: uint64(len(raw)),
	}, nil
}
