package sender

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	logx "blastbot/pkg/logx"
)

// HealthChecker periodically probes senders that are out of rotation and
// returns the ones that answer to the pool.
type HealthChecker struct {
	pool    *Pool
	timeout time.Duration
	log     logx.Logger

	cron *cron.Cron
}

// NewHealthChecker schedules CheckNow on spec (standard cron syntax or a
// descriptor such as "@every 5m").
func NewHealthChecker(pool *Pool, spec string, timeout time.Duration, log logx.Logger) (*HealthChecker, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	h := &HealthChecker{pool: pool, timeout: timeout, log: log}
	h.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := h.cron.AddFunc(spec, func() { h.CheckNow(context.Background()) }); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HealthChecker) Start() { h.cron.Start() }

// Stop halts scheduling and waits for a running check, bounded by ctx.
func (h *HealthChecker) Stop(ctx context.Context) {
	done := h.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// CheckNow probes every unavailable sender once and reports how many were
// put back into rotation.
func (h *HealthChecker) CheckNow(ctx context.Context) int {
	down := h.pool.unavailable()
	if len(down) == 0 {
		return 0
	}
	recovered := 0
	for _, s := range down {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := s.client.Probe(pctx)
		cancel()
		if err != nil {
			h.log.Debug("sender probe failed", logx.Int("sender_id", s.ID), logx.String("username", s.Username), logx.Err(err))
			continue
		}
		h.pool.MarkAvailable(s)
		recovered++
	}
	h.log.Info("sender health check", logx.Int("probed", len(down)), logx.Int("recovered", recovered))
	return recovered
}
