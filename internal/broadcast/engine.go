package broadcast

import (
	"context"
	"errors"
	"time"

	"blastbot/internal/corpus"
	"blastbot/internal/eventbus"
	"blastbot/internal/sender"
	logx "blastbot/pkg/logx"
)

// SenderPool is the part of sender.Pool the engine needs.
type SenderPool interface {
	Acquire() (*sender.Sender, bool)
	MarkUnavailable(s *sender.Sender)
	Status() sender.Status
}

// Templates supplies raid texts.
type Templates interface {
	Random(cat corpus.Category) string
}

// Result is how a job ended.
type Result struct {
	State  State
	Err    error
	Sent   int64
	Failed int64
}

// SenderEvent is published on eventbus.SenderDown.
type SenderEvent struct {
	SenderID int    `json:"sender_id"`
	Username string `json:"username"`
	Err      string `json:"err"`
}

// Engine runs one job loop at a time per call; it holds no per-job state.
type Engine struct {
	pool      SenderPool
	templates Templates
	policies  Policies
	bus       eventbus.Bus
	log       logx.Logger
}

func NewEngine(pool SenderPool, templates Templates, policies Policies, bus eventbus.Bus, log logx.Logger) *Engine {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Engine{pool: pool, templates: templates, policies: policies, bus: bus, log: log}
}

// Run drives j until it completes, is cancelled through ctx, or aborts.
func (e *Engine) Run(ctx context.Context, j *Job) Result {
	pol := e.policies[j.Kind]
	log := e.log.With(logx.String("job_id", j.ID), logx.Int64("chat_id", j.Dest), logx.String("kind", string(j.Kind)))

	res := func(st State, err error) Result {
		return Result{State: st, Err: err, Sent: j.sent.Load(), Failed: j.failed.Load()}
	}

	for i := 0; j.Unbounded || i < j.Count; i++ {
		if ctx.Err() != nil {
			return res(Cancelled, nil)
		}

		s, ok := e.pool.Acquire()
		if !ok {
			return res(Aborted, ErrNoAvailableSender)
		}

		wait := pol.Delay
		if err := s.Send(ctx, j.Dest, e.text(j, pol)); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return res(Cancelled, nil)
			}
			j.failed.Add(1)
			if sender.IsFatal(err) {
				e.pool.MarkUnavailable(s)
				e.bus.Publish(eventbus.Event{Type: eventbus.SenderDown, Data: SenderEvent{SenderID: s.ID, Username: s.Username, Err: err.Error()}})
			}
			if d, ok := sender.RetryAfterOf(err); ok && d > wait {
				wait = d
			}
			if pol.OnSendError == Abort {
				log.Warn("send failed; aborting job", logx.Int("sender_id", s.ID), logx.Int("iteration", i), logx.Err(err))
				return res(Aborted, err)
			}
			log.Debug("send failed; continuing", logx.Int("sender_id", s.ID), logx.Int("iteration", i), logx.Err(err))
		} else {
			j.sent.Add(1)
		}

		if !j.Unbounded && i == j.Count-1 {
			break
		}
		if !sleepCtx(ctx, wait) {
			return res(Cancelled, nil)
		}
	}
	return res(Completed, nil)
}

func (e *Engine) text(j *Job, pol Policy) string {
	if !pol.Templated {
		return j.Payload
	}
	tpl := corpus.Placeholder
	if e.templates != nil {
		tpl = e.templates.Random(pol.Category)
	}
	return corpus.Format(tpl, j.Target)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
