package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blastbot/internal/eventbus"
	"blastbot/internal/runtime/supervisor"
	"blastbot/internal/sender"
	logx "blastbot/pkg/logx"
)

// PoolStatus is the pool view returned to the command layer.
type PoolStatus = sender.Status

// Finished is published on eventbus.JobFinished.
type Finished struct {
	Job JobInfo
	Err error
}

type Options struct {
	Pool              SenderPool
	Templates         Templates
	Policies          Policies
	MaxConcurrentJobs int
	Bus               eventbus.Bus
	Log               logx.Logger
}

// Service is the entry point used by chat commands. Jobs are fire-and-forget:
// StartJob returns as soon as the job is running.
type Service struct {
	reg      *Registry
	engine   *Engine
	guard    *AdmissionGuard
	pool     SenderPool
	policies Policies
	bus      eventbus.Bus
	log      logx.Logger

	sup *supervisor.Supervisor

	mu     sync.Mutex
	closed bool
}

func NewService(opts Options) *Service {
	if opts.Policies == nil {
		opts.Policies = DefaultPolicies()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	log := opts.Log.With(logx.String("comp", "broadcast"))
	reg := NewRegistry()
	return &Service{
		reg:      reg,
		engine:   NewEngine(opts.Pool, opts.Templates, opts.Policies, opts.Bus, log),
		guard:    NewAdmissionGuard(opts.MaxConcurrentJobs, reg),
		pool:     opts.Pool,
		policies: opts.Policies,
		bus:      opts.Bus,
		log:      log,
		sup:      supervisor.New(context.Background(), supervisor.WithLogger(log)),
	}
}

// Policy returns the settings of k.
func (s *Service) Policy(k Kind) (Policy, bool) {
	p, ok := s.policies[k]
	return p, ok
}

// Validate checks req against the kind's policy without starting anything.
func (s *Service) Validate(req Request) error {
	pol, ok := s.policies[req.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidArgument, req.Kind)
	}
	if !pol.Unbounded && (req.Count < pol.Min || req.Count > pol.Max) {
		return fmt.Errorf("%w: count must be between %d and %d", ErrInvalidArgument, pol.Min, pol.Max)
	}
	if pol.Templated {
		t := strings.TrimSpace(req.Target)
		if len(t) < 2 || !strings.HasPrefix(t, "@") {
			return fmt.Errorf("%w: username must start with @", ErrInvalidArgument)
		}
	} else if strings.TrimSpace(req.Payload) == "" {
		return fmt.Errorf("%w: message text is empty", ErrInvalidArgument)
	}
	return nil
}

// StartJob validates, admits and launches a job on req.Dest.
func (s *Service) StartJob(ctx context.Context, req Request) (*JobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	if err := s.guard.Admit(); err != nil {
		return nil, err
	}

	pol := s.policies[req.Kind]
	j := &Job{
		ID:          uuid.NewString(),
		Dest:        req.Dest,
		Kind:        req.Kind,
		Count:       req.Count,
		Unbounded:   pol.Unbounded,
		Payload:     req.Payload,
		Target:      strings.TrimSpace(req.Target),
		RequestedBy: req.RequestedBy,
		StartedAt:   time.Now(),
		state:       Running,
	}
	if pol.Unbounded {
		j.Count = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.reg.TryStart(j); err != nil {
		return nil, err
	}
	jctx, cancel := context.WithCancel(s.sup.Context())
	j.cancel = cancel
	s.sup.GoCtx(jctx, "job."+j.ID, func(ctx context.Context) error {
		s.run(ctx, j)
		return nil
	})

	info := j.Info()
	s.log.Info("job started",
		logx.String("job_id", j.ID),
		logx.Int64("chat_id", j.Dest),
		logx.String("kind", string(j.Kind)),
		logx.Int("count", j.Count),
		logx.Int64("by", j.RequestedBy),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.JobStarted, Data: info})
	return &info, nil
}

func (s *Service) run(ctx context.Context, j *Job) {
	defer s.reg.Remove(j.Dest, j.ID)
	defer j.requestCancel()

	res := s.engine.Run(ctx, j)
	j.finish(res.State, res.Err)

	fields := []logx.Field{
		logx.String("job_id", j.ID),
		logx.Int64("chat_id", j.Dest),
		logx.String("kind", string(j.Kind)),
		logx.String("state", string(res.State)),
		logx.Int64("sent", res.Sent),
		logx.Int64("failed", res.Failed),
		logx.Duration("took", time.Since(j.StartedAt)),
	}
	if res.State == Aborted {
		s.log.Warn("job aborted", append(fields, logx.Err(res.Err))...)
	} else {
		s.log.Info("job finished", fields...)
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.JobFinished, Data: Finished{Job: j.Info(), Err: res.Err}})
}

// StopJob cancels the job on dest. The job stops at its next check point.
func (s *Service) StopJob(dest int64) error {
	if err := s.reg.Cancel(dest); err != nil {
		return err
	}
	s.log.Info("job stop requested", logx.Int64("chat_id", dest))
	return nil
}

// StopAll cancels every live job and reports how many were signalled.
func (s *Service) StopAll() int {
	n := s.reg.CancelAll()
	if n > 0 {
		s.log.Info("all jobs stop requested", logx.Int("jobs", n))
	}
	return n
}

func (s *Service) Job(dest int64) (JobInfo, bool) { return s.reg.Get(dest) }

func (s *Service) Snapshot() Snapshot { return s.reg.Snapshot() }

func (s *Service) PoolStatus() PoolStatus {
	if s.pool == nil {
		return PoolStatus{}
	}
	return s.pool.Status()
}

// MaxConcurrentJobs is the admission ceiling; 0 means unlimited.
func (s *Service) MaxConcurrentJobs() int { return s.guard.Ceiling() }

// Shutdown refuses new jobs, cancels running ones and waits for them until
// ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if !already {
		if n := s.reg.CancelAll(); n > 0 {
			s.log.Info("cancelling jobs for shutdown", logx.Int("jobs", n))
		}
	}
	return s.sup.Stop(ctx)
}
