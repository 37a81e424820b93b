package download

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ferrule/hoard/internal/catalog"
)

type JobState int

const (
	StateQueued JobState = iota
	StateFetching
	StatePaused
	StateRetrying
	StateCompleted
	StateFailed
	StateCancelled
)

func (s JobState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateFetching:
		return "fetching"
	case StatePaused:
		return "paused"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job tracks one file transfer for its whole lifetime. The manager owns
// it; callers see copies via Snapshot.
type Job struct {
	ID       string
	Entry    catalog.Entry
	DestPath string

	mu         sync.Mutex
	state      JobState
	bytesDone  int64
	bytesTotal int64 // -1 until (and unless) the server reports a length
	attempt    int
	err        error

	cancel  context.CancelFunc
	pausing bool
	resume  chan struct{}
}

// Snapshot is a read-only copy of a job's externally visible fields.
type Snapshot struct {
	ID         string
	Entry      catalog.Entry
	DestPath   string
	State      JobState
	BytesDone  int64
	BytesTotal int64
	Attempt    int
	Err        error
}

func newJob(entry catalog.Entry, destPath string) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Entry:      entry,
		DestPath:   destPath,
		state:      StateQueued,
		bytesTotal: -1,
	}
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:         j.ID,
		Entry:      j.Entry,
		DestPath:   j.DestPath,
		State:      j.state,
		BytesDone:  j.bytesDone,
		BytesTotal: j.bytesTotal,
		Attempt:    j.attempt,
		Err:        j.err,
	}
}

func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// pauseRequested is polled by the copy loop between chunk writes.
func (j *Job) pauseRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pausing
}

// awaitResume parks a paused job until Resume or cancellation.
func (j *Job) awaitResume(ctx context.Context) error {
	j.mu.Lock()
	ch := j.resume
	j.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
