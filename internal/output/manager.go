package output

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager renders a live multi-line status display for concurrent jobs.
// It is the terminal-facing progress sink: the caller feeds it status and
// progress updates, it redraws on a ticker.
type jobRow struct {
	ID         string
	Name       string
	Status     string
	Err        error
	BytesDone  int64
	BytesTotal int64
	StartTime  time.Time
	LastUpdate time.Time
	Index      int
}

type errorReport struct {
	Name string
	Err  error
	Time time.Time
}

type Manager struct {
	mutex       sync.RWMutex
	rows        map[string]*jobRow
	errors      []errorReport
	numLines    int
	displayTick time.Duration
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		rows:        make(map[string]*jobRow),
		displayTick: 300 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}
}

func (m *Manager) Register(id, name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.rows[id]; exists {
		return
	}
	m.rows[id] = &jobRow{
		ID:         id,
		Name:       name,
		Status:     "queued",
		BytesTotal: -1,
		StartTime:  time.Now(),
		LastUpdate: time.Now(),
		Index:      len(m.rows),
	}
}

func (m *Manager) SetStatus(id, status string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	row, exists := m.rows[id]
	if !exists {
		return
	}
	row.Status = status
	row.LastUpdate = time.Now()
	if err != nil {
		row.Err = err
		m.errors = append(m.errors, errorReport{Name: row.Name, Err: err, Time: time.Now()})
	}
}

func (m *Manager) SetProgress(id string, done, total int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if row, exists := m.rows[id]; exists {
		row.BytesDone = done
		row.BytesTotal = total
		row.LastUpdate = time.Now()
	}
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				m.showSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func statusIndicator(status string) string {
	switch status {
	case "completed":
		return successStyle.Render(StyleSymbols["pass"])
	case "failed":
		return errorStyle.Render(StyleSymbols["fail"])
	case "cancelled":
		return warningStyle.Render(StyleSymbols["warning"])
	case "retrying", "paused":
		return warningStyle.Render(StyleSymbols["pending"])
	case "fetching":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) sortedRows() []*jobRow {
	rows := make([]*jobRow, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	availableLines := getTerminalHeight() - 3
	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	for _, row := range m.sortedRows() {
		if lineCount >= availableLines {
			break
		}
		indicator := statusIndicator(row.Status)
		elapsed := time.Since(row.StartTime).Round(time.Second)
		detail := ""
		switch row.Status {
		case "fetching", "paused":
			if row.BytesTotal > 0 {
				detail = fmt.Sprintf("%s %s", ProgressBar(row.BytesDone, row.BytesTotal, 25), debugStyle.Render(FormatSpeed(row.BytesDone, elapsed.Seconds())))
			} else if row.BytesDone > 0 {
				detail = debugStyle.Render(FormatBytes(uint64(row.BytesDone)))
			}
		case "failed":
			detail = errorStyle.Render(fmt.Sprintf("%v", row.Err))
		}
		fmt.Printf("  %s %s %s %s\n", indicator, debugStyle.Render(elapsed.String()), styledName(row), detail)
		lineCount++
	}
	m.numLines = lineCount
}

func styledName(row *jobRow) string {
	switch row.Status {
	case "completed":
		return successStyle.Render(row.Name)
	case "failed":
		return errorStyle.Render(row.Name)
	case "cancelled", "retrying", "paused":
		return warningStyle.Render(row.Name)
	default:
		return pendingStyle.Render(row.Name)
	}
}

func (m *Manager) showSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Println()
	var completed, failed int
	for _, row := range m.rows {
		switch row.Status {
		case "completed":
			completed++
		case "failed":
			failed++
		}
	}
	fmt.Println("  " + successStyle.Render(fmt.Sprintf("Completed %d of %d", completed, len(m.rows))))
	if failed > 0 {
		fmt.Println("  " + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, len(m.rows))))
	}
	if len(m.errors) > 0 {
		fmt.Println()
		fmt.Println("  " + errorStyle.Bold(true).Render("Errors:"))
		for i, report := range m.errors {
			fmt.Printf("    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
				errorStyle.Render(fmt.Sprintf("%s: %v", report.Name, report.Err)))
		}
	}
	fmt.Println()
}
