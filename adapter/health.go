package adapter

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/omnirt/shmq/internal/shm"
	"github.com/omnirt/shmq/pkg/queue"
)

// RegisterQueueChecks wires a shared-memory queue into a healthcheck
// handler:
//
//   - liveness "shmq-segment:<name>" fails when the OS object vanished
//     (e.g. the creator unlinked it while we are still attached);
//   - liveness "shmq-peer:<name>" fails when the creating process is
//     gone, which usually means the counters will never move again;
//   - readiness "shmq-backlog:<name>" fails when the queue has been
//     pinned at capacity across two consecutive observations, the usual
//     sign of a stuck or absent consumer.
func RegisterQueueChecks[T any](h healthcheck.Handler, q *queue.ShmQueue[T]) {
	name := q.Name()

	h.AddLivenessCheck("shmq-segment:"+name, func() error {
		if !shm.Exists(name) {
			return fmt.Errorf("shared memory object %s no longer exists", name)
		}
		return nil
	})

	h.AddLivenessCheck("shmq-peer:"+name, func() error {
		pid := q.CreatorPID()
		if pid == 0 || int(pid) == os.Getpid() {
			return nil // we are the creator, or not attached yet
		}
		alive, err := process.PidExists(int32(pid))
		if err != nil {
			return fmt.Errorf("probe creator pid %d: %w", pid, err)
		}
		if !alive {
			return fmt.Errorf("creator process %d of %s is gone", pid, name)
		}
		return nil
	})

	var fullStreak atomic.Uint32
	h.AddReadinessCheck("shmq-backlog:"+name, func() error {
		cap := q.Capacity()
		if cap == 0 || q.Size() < cap {
			fullStreak.Store(0)
			return nil
		}
		if fullStreak.Add(1) >= 2 {
			return fmt.Errorf("queue %s pinned at capacity %d", name, cap)
		}
		return nil
	})
}
