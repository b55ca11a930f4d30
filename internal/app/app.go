package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"blastbot/internal/access"
	"blastbot/internal/broadcast"
	"blastbot/internal/commands"
	"blastbot/internal/config"
	"blastbot/internal/corpus"
	"blastbot/internal/eventbus"
	"blastbot/internal/lock"
	"blastbot/internal/observability/pprof"
	"blastbot/internal/runtime/supervisor"
	"blastbot/internal/sender"
	kit "blastbot/internal/transport"
	telegram "blastbot/internal/transport/telegram/adapter"
	"blastbot/internal/transport/telegram/router"
	logx "blastbot/pkg/logx"
)

type App struct {
	cfg *config.Config

	log  logx.Logger
	logs *logx.Service
	lock *lock.Lock
	sd   sdNotifier
	sup  *supervisor.Supervisor

	bus     eventbus.Bus
	pool    *sender.Pool
	health  *sender.HealthChecker
	corpus  *corpus.Corpus
	bcast   *broadcast.Service
	adapter *telegram.Adapter
	cmdm    *router.CommandManager
	cmds    *commands.Handlers
	debug   *pprof.Service

	updates chan kit.Update
}

// New builds every component. The single-instance lock is taken first; if
// another instance holds it nothing else is touched.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	lk, err := lock.Acquire(cfg.Lock.Path)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, lk)
	if err != nil {
		_ = lk.Release()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, lk *lock.Lock) (*App, error) {
	logs, log := logx.New(mapLogging(cfg))
	appLog := log.With(logx.String("comp", "app"))
	appLog.Info("lock acquired", logx.String("path", lk.Path()))

	fail := func(err error) (*App, error) {
		_ = logs.Close()
		return nil, err
	}

	to, err := mapTimeouts(cfg)
	if err != nil {
		return fail(err)
	}
	policies, err := mapPolicies(cfg)
	if err != nil {
		return fail(err)
	}

	members, err := dialSenders(ctx, cfg.Telegram.Tokens, telegramDialer(to.probe), log.With(logx.String("comp", "senders")))
	if err != nil {
		return fail(err)
	}
	pool := sender.NewPool(members,
		sender.WithRatePerSec(cfg.Senders.RatePerSec),
		sender.WithLogger(log.With(logx.String("comp", "sender.pool"))),
	)

	var health *sender.HealthChecker
	if spec := strings.TrimSpace(cfg.Senders.HealthCheck); spec != config.HealthCheckOff {
		health, err = sender.NewHealthChecker(pool, spec, to.probe, log.With(logx.String("comp", "sender.health")))
		if err != nil {
			return fail(fmt.Errorf("senders.health_check: %w", err))
		}
	}

	corp, err := corpus.Load(mapCorpusFiles(cfg), log.With(logx.String("comp", "corpus")))
	if err != nil {
		return fail(err)
	}

	// the first token doubles as the command bot
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Tokens[0], PollTimeout: to.poll}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fail(fmt.Errorf("primary bot: %w", err))
	}
	logs.AttachSender(ad)

	bus := eventbus.New()
	bcast := broadcast.NewService(broadcast.Options{
		Pool:              pool,
		Templates:         corp,
		Policies:          policies,
		MaxConcurrentJobs: cfg.Broadcast.MaxConcurrentJobs,
		Bus:               bus,
		Log:               log,
	})

	acl := access.New(cfg.Telegram.OwnerID, cfg.Telegram.SudoUserIDs)
	cmdm := router.NewCommandManager(router.Options{
		Adapter:     ad,
		Access:      acl,
		Log:         log,
		BotUsername: ad.Username(),
	})
	cmds := commands.New(commands.Deps{
		Broadcast: bcast,
		Access:    acl,
		Adapter:   ad,
		Bus:       bus,
		Log:       log,
		Links:     mapLinks(cfg),
		StartedAt: time.Now(),
		Senders:   pool.Senders,
		Help:      cmdm.HelpText,
	})

	var debug *pprof.Service
	if cfg.Debug.Enabled {
		debug = pprof.New(pprof.Config{
			Addr:          cfg.Debug.Addr,
			Token:         cfg.Debug.Token,
			AllowInsecure: cfg.Debug.AllowInsecure,
		}, statusFunc(bcast), log.With(logx.String("comp", "debug")))
		if err := debug.Validate(); err != nil {
			return fail(err)
		}
	}

	st := pool.Status()
	appLog.Info("initialized",
		logx.Int("bots", st.Total),
		logx.String("primary", ad.Username()),
		logx.Int("max_concurrent_jobs", cfg.Broadcast.MaxConcurrentJobs),
	)

	return &App{
		cfg:     cfg,
		log:     appLog,
		logs:    logs,
		lock:    lk,
		sd:      sdNotifier{log: appLog},
		bus:     bus,
		pool:    pool,
		health:  health,
		corpus:  corp,
		bcast:   bcast,
		adapter: ad,
		cmdm:    cmdm,
		cmds:    cmds,
		debug:   debug,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error seen by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cmdm.SetParent(a.sup)
	a.cmdm.SetRegistry(a.cmds.Commands(), a.cmds.Callbacks())

	if a.health != nil {
		a.health.Start()
	}
	if a.cfg.Corpus.Watch {
		a.sup.Go0("corpus.watch", func(c context.Context) {
			if err := a.corpus.Watch(c); err != nil {
				a.log.Warn("corpus watch stopped; templates will not reload", logx.Err(err))
			}
		})
	}
	a.sup.Go("commands.relay", a.cmds.Relay)
	a.sup.Go0("systemd.watchdog", a.sd.watchdog)
	if a.debug != nil {
		a.sup.GoRestart("debug.http", a.debug.Run, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	a.sd.ready()
	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.stopping()

	// stop taking commands before cancelling jobs
	a.sup.Cancel()

	// step runs fn with an upper bound so one component can't stall the stop
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("jobs", 5*time.Second, a.bcast.Shutdown)
	step("health", 1*time.Second, func(c context.Context) error {
		if a.health != nil {
			a.health.Stop(c)
		}
		return nil
	})
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	_ = a.logs.Close()
	if err := a.lock.Release(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

type status struct {
	Jobs       broadcast.Snapshot   `json:"jobs"`
	Senders    broadcast.PoolStatus `json:"senders"`
	MaxJobs    int                  `json:"max_concurrent_jobs"`
	Goroutines int                  `json:"goroutines"`
}

func statusFunc(b *broadcast.Service) pprof.StatusFunc {
	return func() any {
		return status{
			Jobs:       b.Snapshot(),
			Senders:    b.PoolStatus(),
			MaxJobs:    b.MaxConcurrentJobs(),
			Goroutines: runtime.NumGoroutine(),
		}
	}
}
