package broadcast

import (
	"sort"
	"sync"
)

// Registry maps a destination to its single live job.
//
// A cancelled job keeps its slot until its task calls Remove, so a new job on
// the same destination cannot overlap the tail of the old one.
type Registry struct {
	mu    sync.Mutex
	jobs  map[int64]*Job
	total uint64
}

type Snapshot struct {
	Total  uint64    `json:"total"`
	Active int       `json:"active"`
	Jobs   []JobInfo `json:"jobs"`
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[int64]*Job{}}
}

// TryStart inserts j unless its destination is taken.
func (r *Registry) TryStart(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.Dest]; ok {
		return ErrAlreadyActive
	}
	r.jobs[j.Dest] = j
	r.total++
	return nil
}

// Cancel signals the job on dest and returns without waiting for it.
func (r *Registry) Cancel(dest int64) error {
	r.mu.Lock()
	j, ok := r.jobs[dest]
	r.mu.Unlock()
	if !ok {
		return ErrNotActive
	}
	j.requestCancel()
	return nil
}

// CancelAll signals every live job and reports how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()
	for _, j := range jobs {
		j.requestCancel()
	}
	return len(jobs)
}

// Remove drops the entry for dest if it still belongs to jobID.
func (r *Registry) Remove(dest int64, jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[dest]
	if !ok || j.ID != jobID {
		return false
	}
	delete(r.jobs, dest)
	return true
}

func (r *Registry) Get(dest int64) (JobInfo, bool) {
	r.mu.Lock()
	j, ok := r.jobs[dest]
	r.mu.Unlock()
	if !ok {
		return JobInfo{}, false
	}
	return j.Info(), true
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Snapshot lists live jobs ordered by start time.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	s := Snapshot{Total: r.total, Active: len(jobs)}
	r.mu.Unlock()

	s.Jobs = make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		s.Jobs = append(s.Jobs, j.Info())
	}
	sort.Slice(s.Jobs, func(a, b int) bool {
		if s.Jobs[a].StartedAt.Equal(s.Jobs[b].StartedAt) {
			return s.Jobs[a].Dest < s.Jobs[b].Dest
		}
		return s.Jobs[a].StartedAt.Before(s.Jobs[b].StartedAt)
	})
	return s
}
