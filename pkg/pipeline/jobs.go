package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// UnitState represents the lifecycle of a (lineage, year) unit.
type UnitState string

const (
	UnitQueued    UnitState = "queued"
	UnitRunning   UnitState = "running"
	UnitCompleted UnitState = "completed"
	UnitFailed    UnitState = "failed"
	UnitSkipped   UnitState = "skipped"
)

// UnitJob keeps track of one unit while the run is in progress.
type UnitJob struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Lineage   string    `json:"lineage"`
	Year      int       `json:"year"`
	State     UnitState `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnitID names a unit, e.g. H3N2/2016.
func UnitID(lineage string, year int) string {
	return fmt.Sprintf("%s/%d", lineage, year)
}

// UnitTracker stores unit states indexed by unit id.
type UnitTracker struct {
	mu   sync.RWMutex
	jobs map[string]*UnitJob
}

func NewUnitTracker() *UnitTracker {
	return &UnitTracker{
		jobs: make(map[string]*UnitJob),
	}
}

// Queue registers a queued unit, replacing any earlier job with the same id.
func (m *UnitTracker) Queue(runID, lineage string, year int) *UnitJob {
	job := &UnitJob{
		ID:        UnitID(lineage, year),
		RunID:     runID,
		Lineage:   lineage,
		Year:      year,
		State:     UnitQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job
}

func (m *UnitTracker) SetRunning(id string) {
	m.update(id, func(job *UnitJob) {
		job.State = UnitRunning
	})
}

func (m *UnitTracker) Complete(id string) {
	m.update(id, func(job *UnitJob) {
		job.State = UnitCompleted
	})
}

func (m *UnitTracker) Skip(id string, reason string) {
	m.update(id, func(job *UnitJob) {
		job.State = UnitSkipped
		job.Error = reason
	})
}

// Fail records a failure and attaches its message.
func (m *UnitTracker) Fail(id string, err error) {
	m.update(id, func(job *UnitJob) {
		job.State = UnitFailed
		job.Error = err.Error()
	})
}

// Get returns a copy of the job with the given id.
func (m *UnitTracker) Get(id string) (UnitJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return UnitJob{}, false
	}
	return *job, true
}

// List returns copies of all jobs of lineage (all lineages when empty),
// ordered by lineage then year.
func (m *UnitTracker) List(lineage string) []UnitJob {
	m.mu.RLock()
	out := make([]UnitJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		if lineage == "" || job.Lineage == lineage {
			out = append(out, *job)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Lineage != out[j].Lineage {
			return out[i].Lineage < out[j].Lineage
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// Counts tallies jobs per state.
func (m *UnitTracker) Counts() map[UnitState]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[UnitState]int)
	for _, job := range m.jobs {
		out[job.State]++
	}
	return out
}

func (m *UnitTracker) update(id string, update func(job *UnitJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}

	update(job)
	job.UpdatedAt = time.Now()
}
