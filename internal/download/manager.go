package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/client"
)

const (
	DefaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxBackoff        = 30 * time.Second
)

// Manager schedules file downloads over a bounded worker pool. Jobs are
// admitted FIFO in enqueue order; completion order is whatever the network
// gives. One failed or cancelled job never disturbs the others.
type Manager struct {
	client     client.HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	events     *emitter

	mu    sync.Mutex
	jobs  map[string]*Job
	order []*Job
	dests map[string]string // destination path -> job ID holding the claim
}

type ManagerOption func(*Manager)

func WithMaxRetries(n int) ManagerOption {
	return func(m *Manager) { m.maxRetries = n }
}

func WithBaseDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.baseDelay = d }
}

func WithEventBuffer(n int) ManagerOption {
	return func(m *Manager) { m.events = newEmitter(n, 100*time.Millisecond) }
}

func NewManager(httpClient client.HTTPDoer, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:     httpClient,
		maxRetries: DefaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		events:     newEmitter(256, 100*time.Millisecond),
		jobs:       make(map[string]*Job),
		dests:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events is the sink boundary: the presentation layer drains this channel.
// It closes when Start returns.
func (m *Manager) Events() <-chan Event {
	return m.events.ch
}

// Enqueue creates one queued job per entry, writing each file under
// destDir at its catalog-relative path. Directory entries and entries
// whose destination is already claimed are rejected individually; earlier
// entries in the same call are unaffected.
func (m *Manager) Enqueue(entries []catalog.Entry, destDir string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var made []Snapshot
	for _, entry := range entries {
		if entry.Kind == catalog.KindDirectory {
			return made, fmt.Errorf("%s: %w", entry.RelPath(), catalog.ErrInvalidTarget)
		}
		dest := filepath.Join(destDir, filepath.FromSlash(entry.RelPath()))
		if holder, taken := m.dests[dest]; taken {
			return made, fmt.Errorf("%s (held by job %s): %w", dest, holder, catalog.ErrDuplicateDestination)
		}
		job := newJob(entry, dest)
		m.dests[dest] = job.ID
		m.jobs[job.ID] = job
		m.order = append(m.order, job)
		made = append(made, job.Snapshot())
		log.Debug().Str("op", "download/manager").Str("job", job.ID).Msgf("Queued %s", entry.RelPath())
	}
	return made, nil
}

// Start runs the pool until every enqueued job reaches a terminal state,
// then closes the event channel. Cancelling ctx cancels the jobs still in
// flight or queued; partial files stay on disk for a later resume.
func (m *Manager) Start(ctx context.Context, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 4
	}
	m.mu.Lock()
	pending := make(chan *Job, len(m.order))
	for _, job := range m.order {
		pending <- job
	}
	m.mu.Unlock()
	close(pending)

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range pending {
				m.runJob(ctx, job)
			}
		}()
	}
	wg.Wait()
	m.events.close()

	m.mu.Lock()
	defer m.mu.Unlock()
	var failed int
	for _, job := range m.order {
		if job.State() == StateFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d download(s) failed", failed, len(m.order))
	}
	return nil
}

func (m *Manager) Job(id string) (Snapshot, bool) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return job.Snapshot(), true
}

func (m *Manager) Jobs() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, job := range m.order {
		out = append(out, job.Snapshot())
	}
	return out
}

// Cancel moves a job to Cancelled from any non-terminal state. An
// in-flight request is aborted; whatever bytes reached disk stay there so
// a later run can resume. Cancelling is not deleting progress.
func (m *Manager) Cancel(id string) error {
	job, err := m.lookup(id)
	if err != nil {
		return err
	}
	job.mu.Lock()
	if job.state.Terminal() {
		job.mu.Unlock()
		return nil
	}
	wasQueued := job.state == StateQueued
	if wasQueued {
		// Not yet picked up by a worker; finalize here so the terminal
		// event still fires exactly once.
		job.state = StateCancelled
	} else {
		job.pausing = false
		if job.resume != nil {
			close(job.resume)
			job.resume = nil
		}
	}
	cancel := job.cancel
	job.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if wasQueued {
		m.events.state(Event{JobID: job.ID, State: StateCancelled, Name: job.Entry.Name})
	}
	return nil
}

// Pause gates a Fetching job. The in-flight chunk finishes, the connection
// is dropped, and the job waits; Resume reissues a ranged request from the
// partial file.
func (m *Manager) Pause(id string) error {
	job, err := m.lookup(id)
	if err != nil {
		return err
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.state != StateFetching || job.pausing {
		return fmt.Errorf("job %s is %s, cannot pause", id, job.state)
	}
	job.pausing = true
	job.resume = make(chan struct{})
	return nil
}

func (m *Manager) Resume(id string) error {
	job, err := m.lookup(id)
	if err != nil {
		return err
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.state != StatePaused && !job.pausing {
		return fmt.Errorf("job %s is %s, cannot resume", id, job.state)
	}
	job.pausing = false
	if job.resume != nil {
		close(job.resume)
		job.resume = nil
	}
	return nil
}

func (m *Manager) lookup(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("no such job: %s", id)
	}
	return job, nil
}

func (m *Manager) setState(job *Job, state JobState, err error) {
	job.mu.Lock()
	job.state = state
	job.err = err
	ev := Event{
		JobID:      job.ID,
		State:      state,
		Name:       job.Entry.Name,
		BytesDone:  job.bytesDone,
		BytesTotal: job.bytesTotal,
		Err:        err,
	}
	job.mu.Unlock()
	m.events.state(ev)
	if err != nil {
		m.events.errorEvent(ev)
	}
}
