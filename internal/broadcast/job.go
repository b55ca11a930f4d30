package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type State string

const (
	Running   State = "running"
	Completed State = "completed"
	Cancelled State = "cancelled"
	Aborted   State = "aborted"
)

func (s State) Terminal() bool { return s == Completed || s == Cancelled || s == Aborted }

// Request is what the command layer asks for.
type Request struct {
	Dest        int64
	Kind        Kind
	Count       int
	Payload     string // literal text for spam kinds
	Target      string // @username for raid kinds
	RequestedBy int64
}

// Job is a registry entry. Counters are updated by the owning task only and
// read by anyone.
type Job struct {
	ID          string
	Dest        int64
	Kind        Kind
	Count       int
	Unbounded   bool
	Payload     string
	Target      string
	RequestedBy int64
	StartedAt   time.Time

	cancel     context.CancelFunc
	cancelOnce sync.Once
	stopping   atomic.Bool

	sent   atomic.Int64
	failed atomic.Int64

	mu    sync.Mutex
	state State
	err   error
}

// JobInfo is a point-in-time copy of a Job.
type JobInfo struct {
	ID          string    `json:"id"`
	Dest        int64     `json:"dest"`
	Kind        Kind      `json:"kind"`
	Count       int       `json:"count,omitempty"`
	Unbounded   bool      `json:"unbounded,omitempty"`
	Target      string    `json:"target,omitempty"`
	RequestedBy int64     `json:"requested_by,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	Sent        int64     `json:"sent"`
	Failed      int64     `json:"failed"`
	State       State     `json:"state"`
	Stopping    bool      `json:"stopping,omitempty"`
}

func (j *Job) requestCancel() {
	j.stopping.Store(true)
	j.cancelOnce.Do(func() {
		if j.cancel != nil {
			j.cancel()
		}
	})
}

func (j *Job) finish(st State, err error) {
	j.mu.Lock()
	j.state = st
	j.err = err
	j.mu.Unlock()
}

// Err is the reason an aborted job stopped.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) Info() JobInfo {
	j.mu.Lock()
	st := j.state
	j.mu.Unlock()
	return JobInfo{
		ID:          j.ID,
		Dest:        j.Dest,
		Kind:        j.Kind,
		Count:       j.Count,
		Unbounded:   j.Unbounded,
		Target:      j.Target,
		RequestedBy: j.RequestedBy,
		StartedAt:   j.StartedAt,
		Sent:        j.sent.Load(),
		Failed:      j.failed.Load(),
		State:       st,
		Stopping:    j.stopping.Load() && !st.Terminal(),
	}
}
