package sender

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	logx "blastbot/pkg/logx"
)

// Client is one outbound bot identity as seen by the pool.
type Client interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// Probe checks that the credential still works (Telegram getMe).
	Probe(ctx context.Context) error
}

// Member describes one sender at pool construction time.
type Member struct {
	Username string
	Client   Client
}

// Sender is a pool entry. Availability is owned by the Pool; job code only
// sends through it.
type Sender struct {
	ID       int
	Username string

	client  Client
	limiter *rate.Limiter

	available bool // guarded by Pool.mu
}

// Send waits for the per-sender rate limiter (if any) and sends text.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return s.client.SendText(ctx, chatID, text)
}

// Status is the PoolStatus view: how many senders exist and how many are in rotation.
type Status struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// Info is a read-only view of one sender.
type Info struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// Pool hands out senders round-robin. The sender order is fixed at
// construction; the cursor always points at the next index to try.
type Pool struct {
	mu      sync.Mutex
	senders []*Sender
	cursor  int

	log logx.Logger
}

type PoolOption func(*poolOptions)

type poolOptions struct {
	ratePerSec int
	log        logx.Logger
}

// WithRatePerSec gives every sender its own token bucket of n sends per
// second (burst n). 0 disables limiting.
func WithRatePerSec(n int) PoolOption {
	return func(o *poolOptions) { o.ratePerSec = n }
}

func WithLogger(log logx.Logger) PoolOption {
	return func(o *poolOptions) { o.log = log }
}

// NewPool builds a pool with every member available.
func NewPool(members []Member, opts ...PoolOption) *Pool {
	var o poolOptions
	for _, fn := range opts {
		fn(&o)
	}
	p := &Pool{senders: make([]*Sender, 0, len(members)), log: o.log}
	for _, m := range members {
		if m.Client == nil {
			continue
		}
		s := &Sender{ID: len(p.senders), Username: m.Username, client: m.Client, available: true}
		if o.ratePerSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(o.ratePerSec), o.ratePerSec)
		}
		p.senders = append(p.senders, s)
	}
	return p
}

// Acquire returns the next available sender in rotation order. Each attempt
// advances the cursor by one; after one full cycle with nothing available it
// returns false.
func (p *Pool) Acquire() (*Sender, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.senders)
	for i := 0; i < n; i++ {
		s := p.senders[p.cursor]
		p.cursor = (p.cursor + 1) % n
		if s.available {
			return s, true
		}
	}
	return nil, false
}

// MarkUnavailable takes s out of rotation. Idempotent.
func (p *Pool) MarkUnavailable(s *Sender) {
	if p.setAvailable(s, false) {
		p.log.Warn("sender marked unavailable", logx.Int("sender_id", s.ID), logx.String("username", s.Username))
	}
}

// MarkAvailable puts s back into rotation. Idempotent.
func (p *Pool) MarkAvailable(s *Sender) {
	if p.setAvailable(s, true) {
		p.log.Info("sender available again", logx.Int("sender_id", s.ID), logx.String("username", s.Username))
	}
}

func (p *Pool) setAvailable(s *Sender, v bool) (changed bool) {
	if s == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.ID < 0 || s.ID >= len(p.senders) || p.senders[s.ID] != s {
		return false
	}
	if s.available == v {
		return false
	}
	s.available = v
	return true
}

func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{Total: len(p.senders)}
	for _, s := range p.senders {
		if s.available {
			st.Available++
		}
	}
	return st
}

// Senders returns a snapshot in rotation order.
func (p *Pool) Senders() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Info, 0, len(p.senders))
	for _, s := range p.senders {
		out = append(out, Info{ID: s.ID, Username: s.Username, Available: s.available})
	}
	return out
}

// unavailable lists senders currently out of rotation.
func (p *Pool) unavailable() []*Sender {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Sender
	for _, s := range p.senders {
		if !s.available {
			out = append(out, s)
		}
	}
	return out
}
