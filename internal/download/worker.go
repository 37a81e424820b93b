package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ferrule/hoard/internal/catalog"
)

const copyBufferSize = 1024 * 1024

// errPaused aborts the current attempt without consuming a retry.
var errPaused = errors.New("attempt paused")

func (m *Manager) runJob(ctx context.Context, job *Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.mu.Lock()
	if job.state != StateQueued {
		// Cancelled before this worker claimed it; Cancel already emitted
		// the terminal event. The claim check and the cancel hookup share
		// one critical section so Cancel can never slip between them.
		job.mu.Unlock()
		return
	}
	job.cancel = cancel
	job.mu.Unlock()

	attempts := 0
	for {
		job.mu.Lock()
		attempts++
		job.attempt = attempts
		job.mu.Unlock()
		m.setState(job, StateFetching, nil)

		err := m.attempt(jobCtx, job)
		switch {
		case err == nil:
			log.Info().Str("op", "download/worker").Str("job", job.ID).Msgf("Completed %s", job.Entry.RelPath())
			m.setState(job, StateCompleted, nil)
			return
		case errors.Is(err, errPaused):
			m.setState(job, StatePaused, nil)
			if job.awaitResume(jobCtx) != nil {
				m.setState(job, StateCancelled, nil)
				return
			}
			job.mu.Lock()
			attempts-- // a pause is not a failure
			job.mu.Unlock()
		case jobCtx.Err() != nil:
			// The partial file stays put; cancellation is not a request
			// to delete progress.
			m.setState(job, StateCancelled, nil)
			return
		case isTransient(err) && attempts < m.maxRetries:
			log.Warn().Str("op", "download/worker").Str("job", job.ID).Err(err).Msgf("Retrying %s (attempt %d/%d)", job.Entry.Name, attempts, m.maxRetries)
			m.setState(job, StateRetrying, err)
			if !m.backoff(jobCtx, attempts) {
				m.setState(job, StateCancelled, nil)
				return
			}
		default:
			log.Error().Str("op", "download/worker").Str("job", job.ID).Err(err).Msgf("Failed %s after %d attempt(s)", job.Entry.Name, attempts)
			m.setState(job, StateFailed, err)
			return
		}
	}
}

// backoff sleeps base·2^attempt capped, abortable by cancellation.
func (m *Manager) backoff(ctx context.Context, attempt int) bool {
	delay := m.baseDelay * (1 << attempt)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// attempt performs one ranged GET into the destination file. The partial
// file uses the final name directly; resume means append from its current
// length, and the one correctness rule is that appended bytes must be a
// contiguous continuation. A 200 response to a ranged request means the
// server ignored the range, so the partial is discarded, never appended to.
func (m *Manager) attempt(ctx context.Context, job *Job) error {
	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	var offset int64
	if fi, err := os.Stat(job.DestPath); err == nil {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.Entry.URL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		log.Debug().Str("op", "download/worker").Str("job", job.ID).Msgf("Resuming from offset %d", offset)
	}
	req.Header.Set("Connection", "keep-alive")

	resp, err := m.client.Do(req)
	if err != nil {
		return &catalog.NetworkError{URL: job.Entry.URL, Err: err}
	}
	defer resp.Body.Close()

	var total int64 = -1
	fileMode := os.O_CREATE | os.O_WRONLY
	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		if t := contentRangeTotal(resp.Header.Get("Content-Range")); t >= 0 {
			total = t
		} else if resp.ContentLength >= 0 {
			total = offset + resp.ContentLength
		}
		fileMode |= os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		// Full body, either because no range was asked for or because the
		// server ignored it; either way the file restarts from zero.
		if resp.ContentLength >= 0 {
			total = resp.ContentLength
		}
		offset = 0
		fileMode |= os.O_TRUNC
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		total = contentRangeTotal(resp.Header.Get("Content-Range"))
		if total >= 0 && offset == total {
			// Nothing left to fetch; the previous run finished the file.
			m.record(job, offset, total)
			return nil
		}
		// Offset and remote size disagree; wipe and retry from zero.
		if err := os.Truncate(job.DestPath, 0); err != nil {
			return fmt.Errorf("resetting oversized partial: %w", err)
		}
		return &catalog.NetworkError{URL: job.Entry.URL, Err: fmt.Errorf("range at %d not satisfiable (remote size %d)", offset, total)}
	case resp.StatusCode >= 500:
		return &catalog.NetworkError{URL: job.Entry.URL, Err: fmt.Errorf("server error %d", resp.StatusCode)}
	default:
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, job.Entry.URL)
	}

	outFile, err := os.OpenFile(job.DestPath, fileMode, 0644)
	if err != nil {
		return fmt.Errorf("opening destination file: %w", err)
	}
	defer outFile.Close()

	m.record(job, offset, total)
	written := offset
	buffer := make([]byte, copyBufferSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if job.pauseRequested() {
			return errPaused
		}
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, werr := outFile.Write(buffer[:n]); werr != nil {
				return fmt.Errorf("writing destination file: %w", werr)
			}
			written += int64(n)
			m.record(job, written, total)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &catalog.NetworkError{URL: job.Entry.URL, Err: readErr}
		}
	}
	if err := outFile.Sync(); err != nil {
		return fmt.Errorf("syncing destination file: %w", err)
	}
	if total >= 0 && written != total {
		// Short stream; the partial stays for the next attempt to resume.
		return &catalog.NetworkError{URL: job.Entry.URL, Err: fmt.Errorf("stream ended at %d of %d bytes", written, total)}
	}
	return nil
}

// record updates job counters and pushes a coalesced progress event.
func (m *Manager) record(job *Job, done, total int64) {
	job.mu.Lock()
	job.bytesDone = done
	job.bytesTotal = total
	name := job.Entry.Name
	job.mu.Unlock()
	m.events.progress(Event{JobID: job.ID, Name: name, BytesDone: done, BytesTotal: total})
}

// contentRangeTotal parses the total size out of "bytes 0-99/1234" or
// "bytes */1234"; -1 when absent or unknown ("/*").
func contentRangeTotal(header string) int64 {
	_, after, found := strings.Cut(header, "/")
	if !found {
		return -1
	}
	total, err := strconv.ParseInt(strings.TrimSpace(after), 10, 64)
	if err != nil {
		return -1
	}
	return total
}

func isTransient(err error) bool {
	var netErr *catalog.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, catalog.ErrTooManyRedirects)
}
