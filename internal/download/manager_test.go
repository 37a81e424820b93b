package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrule/hoard/internal/catalog"
	"github.com/ferrule/hoard/internal/client"
)

func fileEntry(rel, url string, size int64) catalog.Entry {
	path := strings.Split(rel, "/")
	return catalog.Entry{
		Path: path,
		Name: path[len(path)-1],
		Kind: catalog.KindFile,
		URL:  url,
		Size: size,
	}
}

func drain(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func terminalEvents(events []Event, jobID string) []Event {
	var out []Event
	for _, ev := range events {
		if ev.JobID == jobID && ev.Kind == EventStateChanged && ev.State.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

func newTestManager(opts ...ManagerOption) *Manager {
	return NewManager(client.NewHTTPClient(client.HTTPClientConfig{}), opts...)
}

func TestDownloadHappyPath(t *testing.T) {
	content := map[string]string{
		"/a.bin":     "alpha contents",
		"/sub/b.bin": "beta contents, a bit longer",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := content[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	mgr := newTestManager()
	snaps, err := mgr.Enqueue([]catalog.Entry{
		fileEntry("a.bin", srv.URL+"/a.bin", int64(len(content["/a.bin"]))),
		fileEntry("sub/b.bin", srv.URL+"/sub/b.bin", int64(len(content["/sub/b.bin"]))),
	}, destDir)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	require.NoError(t, mgr.Start(context.Background(), 2))
	events := drain(mgr.Events())

	got, err := os.ReadFile(filepath.Join(destDir, "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, content["/a.bin"], string(got))
	got, err = os.ReadFile(filepath.Join(destDir, "sub", "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, content["/sub/b.bin"], string(got))

	for _, snap := range snaps {
		term := terminalEvents(events, snap.ID)
		require.Len(t, term, 1, "exactly one terminal event per job")
		assert.Equal(t, StateCompleted, term[0].State)
	}
}

func TestEnqueueRejectsDirectory(t *testing.T) {
	mgr := newTestManager()
	dir := catalog.Entry{Path: []string{"Consoles"}, Name: "Consoles", Kind: catalog.KindDirectory, Size: -1}

	made, err := mgr.Enqueue([]catalog.Entry{dir}, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrInvalidTarget)
	assert.Empty(t, made)
}

func TestEnqueueDuplicateDestination(t *testing.T) {
	destDir := t.TempDir()
	mgr := newTestManager()
	first := fileEntry("same.bin", "http://mirror.test/one/same.bin", 10)
	second := fileEntry("same.bin", "http://mirror.test/two/same.bin", 10)

	made, err := mgr.Enqueue([]catalog.Entry{first, second}, destDir)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrDuplicateDestination)
	require.Len(t, made, 1, "the first claim stands, the second is rejected")
	assert.Equal(t, StateQueued, made[0].State)
}

func TestCancelQueuedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "never fetched")
	}))
	defer srv.Close()

	destDir := t.TempDir()
	mgr := newTestManager()
	snaps, err := mgr.Enqueue([]catalog.Entry{fileEntry("x.bin", srv.URL+"/x.bin", 13)}, destDir)
	require.NoError(t, err)

	require.NoError(t, mgr.Cancel(snaps[0].ID))
	require.NoError(t, mgr.Start(context.Background(), 1))
	events := drain(mgr.Events())

	snap, ok := mgr.Job(snaps[0].ID)
	require.True(t, ok)
	assert.Equal(t, StateCancelled, snap.State)

	term := terminalEvents(events, snaps[0].ID)
	require.Len(t, term, 1)
	assert.Equal(t, StateCancelled, term[0].State)

	_, err = os.Stat(filepath.Join(destDir, "x.bin"))
	assert.True(t, os.IsNotExist(err), "a cancelled queued job must not touch disk")
}

func TestCancelIsIdempotent(t *testing.T) {
	mgr := newTestManager()
	snaps, err := mgr.Enqueue([]catalog.Entry{fileEntry("x.bin", "http://mirror.test/x.bin", 1)}, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mgr.Cancel(snaps[0].ID))
	require.NoError(t, mgr.Cancel(snaps[0].ID))
	require.NoError(t, mgr.Start(context.Background(), 1))
	events := drain(mgr.Events())
	assert.Len(t, terminalEvents(events, snaps[0].ID), 1)
}

func TestJobsKeepEnqueueOrder(t *testing.T) {
	mgr := newTestManager()
	var entries []catalog.Entry
	for i := range 5 {
		entries = append(entries, fileEntry(fmt.Sprintf("f%d.bin", i), fmt.Sprintf("http://mirror.test/f%d.bin", i), 1))
	}
	made, err := mgr.Enqueue(entries, t.TempDir())
	require.NoError(t, err)

	jobs := mgr.Jobs()
	require.Len(t, jobs, 5)
	for i, snap := range jobs {
		assert.Equal(t, made[i].ID, snap.ID)
	}
}

func TestConcurrentCancelEmitsOneTerminalEvent(t *testing.T) {
	// Cancels race against worker pickup here; whichever side wins, a job
	// must end in exactly one terminal state with exactly one terminal event.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	destDir := t.TempDir()
	mgr := newTestManager()
	var entries []catalog.Entry
	for i := range 16 {
		entries = append(entries, fileEntry(fmt.Sprintf("f%d.bin", i), srv.URL+fmt.Sprintf("/f%d.bin", i), 7))
	}
	snaps, err := mgr.Enqueue(entries, destDir)
	require.NoError(t, err)

	eventsDone := collectEvents(mgr)
	startDone := make(chan error, 1)
	go func() { startDone <- mgr.Start(context.Background(), 4) }()
	var wg sync.WaitGroup
	for _, snap := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mgr.Cancel(snap.ID))
		}()
	}
	wg.Wait()
	require.NoError(t, <-startDone)
	events := <-eventsDone

	for _, snap := range snaps {
		got, ok := mgr.Job(snap.ID)
		require.True(t, ok)
		assert.True(t, got.State.Terminal(), "job %s ended as %s", snap.ID, got.State)
		assert.Len(t, terminalEvents(events, snap.ID), 1, "job %s", snap.ID)
	}
}
