package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"blastbot/internal/access"
	"blastbot/internal/broadcast"
	"blastbot/internal/corpus"
	"blastbot/internal/eventbus"
	"blastbot/internal/sender"
	"blastbot/internal/sysinfo"
	kit "blastbot/internal/transport"
	"blastbot/internal/transport/telegram/router"
	logx "blastbot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerID = int64(1)
	sudoID  = int64(2)
	chat    = int64(-500)
)

type botClient struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (c *botClient) SendText(_ context.Context, _ int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *botClient) Probe(context.Context) error { return nil }

func (c *botClient) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type chatAdapter struct {
	mu     sync.Mutex
	sent   []string
	opts   []*kit.SendOptions
	edited []string
}

func (a *chatAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *chatAdapter) Stop(context.Context) error                     { return nil }

func (a *chatAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	a.opts = append(a.opts, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.sent)}, nil
}

func (a *chatAdapter) EditText(_ context.Context, _ kit.MessageRef, text string, _ *kit.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.edited = append(a.edited, text)
	return nil
}

func (a *chatAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (a *chatAdapter) last() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sent) == 0 {
		return ""
	}
	return a.sent[len(a.sent)-1]
}

type harness struct {
	h       *Handlers
	svc     *broadcast.Service
	pool    *sender.Pool
	acl     *access.List
	adapter *chatAdapter
	bots    []*botClient
}

func newHarness(t *testing.T, nBots int) *harness {
	t.Helper()
	pol := broadcast.DefaultPolicies()
	for _, k := range broadcast.Kinds() {
		require.NoError(t, pol.Apply(k, broadcast.Override{Delay: time.Millisecond}))
	}

	var members []sender.Member
	var bots []*botClient
	for i := 0; i < nBots; i++ {
		c := &botClient{}
		bots = append(bots, c)
		members = append(members, sender.Member{Username: "bot" + string(rune('a'+i)), Client: c})
	}
	pool := sender.NewPool(members)

	corp, err := corpus.Load(nil, logx.Nop())
	require.NoError(t, err)

	svc := broadcast.NewService(broadcast.Options{
		Pool:              pool,
		Templates:         corp,
		Policies:          pol,
		MaxConcurrentJobs: 10,
		Log:               logx.Nop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	acl := access.New(ownerID, []int64{sudoID})
	ad := &chatAdapter{}
	h := New(Deps{
		Broadcast: svc,
		Access:    acl,
		Adapter:   ad,
		Links:     Links{Channel: "https://t.me/c", Group: "https://t.me/g"},
		Senders:   pool.Senders,
		Help:      func(access.Level) string { return "HELP" },
		Stats: func(context.Context) (sysinfo.Stats, error) {
			return sysinfo.Stats{CPUPercent: 12.5, MemPercent: 40}, nil
		},
	})
	return &harness{h: h, svc: svc, pool: pool, acl: acl, adapter: ad, bots: bots}
}

func (hs *harness) request(from int64, argText string) *router.Request {
	return &router.Request{
		Chat:    kit.ChatTarget{ChatID: chat},
		FromID:  from,
		Level:   hs.acl.LevelOf(from),
		Args:    strings.Fields(argText),
		ArgText: argText,
		Adapter: hs.adapter,
		Logger:  logx.Nop(),
	}
}

func (hs *harness) totalSent() []string {
	var out []string
	for _, b := range hs.bots {
		out = append(out, b.texts()...)
	}
	return out
}

func (hs *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return hs.svc.Snapshot().Active == 0 }, 2*time.Second, 2*time.Millisecond)
}

func TestSpamKeepsMessageSpacing(t *testing.T) {
	hs := newHarness(t, 2)
	ctx := context.Background()

	require.NoError(t, hs.h.cmdSpam(broadcast.Spam)(ctx, hs.request(sudoID, "3 hello   world")))
	hs.waitIdle(t)

	sent := hs.totalSent()
	require.Len(t, sent, 3)
	for _, s := range sent {
		assert.Equal(t, "hello   world", s)
	}
	assert.NotEmpty(t, hs.bots[0].texts())
	assert.NotEmpty(t, hs.bots[1].texts(), "sends rotate across bots")
}

func TestSpamArgumentErrors(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()
	spam := hs.h.cmdSpam(broadcast.Spam)

	require.NoError(t, spam(ctx, hs.request(sudoID, "")))
	assert.Equal(t, "Usage: /spam <count (1-999)> <message>", hs.adapter.last())

	require.NoError(t, spam(ctx, hs.request(sudoID, "ten hi")))
	assert.Equal(t, msgNotANumber, hs.adapter.last())

	require.NoError(t, spam(ctx, hs.request(sudoID, "1000 hi")))
	assert.Equal(t, "❌ Count must be between 1 and 999", hs.adapter.last())

	require.NoError(t, hs.h.cmdSpam(broadcast.Unbounded)(ctx, hs.request(sudoID, "   ")))
	assert.Equal(t, "Usage: /uspam <message>", hs.adapter.last())
	assert.Empty(t, hs.totalSent())
}

func TestUnboundedStartStop(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()

	require.NoError(t, hs.h.cmdSpam(broadcast.Unbounded)(ctx, hs.request(sudoID, "go")))
	assert.Equal(t, "Unlimited spam started! Use /stop to stop.", hs.adapter.last())

	require.NoError(t, hs.h.cmdSpam(broadcast.Spam)(ctx, hs.request(sudoID, "2 again")))
	assert.Contains(t, hs.adapter.last(), "already running")

	require.Eventually(t, func() bool { return len(hs.totalSent()) >= 3 }, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, hs.h.cmdStop(ctx, hs.request(sudoID, "")))
	assert.Equal(t, "✅ Spam stopped in this chat!", hs.adapter.last())
	hs.waitIdle(t)

	require.NoError(t, hs.h.cmdStop(ctx, hs.request(sudoID, "")))
	assert.Equal(t, "Nothing is running in this chat.", hs.adapter.last())
}

func TestRaidFormatsTarget(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()
	raid := hs.h.cmdRaid(broadcast.Raid)

	require.NoError(t, raid(ctx, hs.request(sudoID, "2 bob")))
	assert.Equal(t, msgNoTarget, hs.adapter.last())

	require.NoError(t, raid(ctx, hs.request(sudoID, "2 @bob")))
	hs.waitIdle(t)
	assert.Equal(t, []string{"@bob RAID DEFAULT MESSAGE", "@bob RAID DEFAULT MESSAGE"}, hs.totalSent())

	require.NoError(t, hs.h.cmdRaid(broadcast.RomanticRaid)(ctx, hs.request(sudoID, "101 @bob")))
	assert.Equal(t, "❌ Count must be between 1 and 100", hs.adapter.last())
}

func TestStopAll(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()

	require.NoError(t, hs.h.cmdSpam(broadcast.Unbounded)(ctx, hs.request(sudoID, "go")))
	require.NoError(t, hs.h.cmdStopAll(ctx, hs.request(ownerID, "")))
	assert.Equal(t, "All spam activities stopped! (1 jobs)", hs.adapter.last())
	hs.waitIdle(t)
}

func TestSudoManagement(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()

	require.NoError(t, hs.h.cmdAddSudo(ctx, hs.request(ownerID, "")))
	assert.Equal(t, "Usage: /addsudo <user_id>", hs.adapter.last())

	require.NoError(t, hs.h.cmdAddSudo(ctx, hs.request(ownerID, "abc")))
	assert.Equal(t, "❌ Invalid user ID!", hs.adapter.last())

	require.NoError(t, hs.h.cmdAddSudo(ctx, hs.request(ownerID, "77")))
	assert.Equal(t, "✅ User 77 added to sudo users!", hs.adapter.last())
	assert.Equal(t, access.Sudo, hs.acl.LevelOf(77))

	require.NoError(t, hs.h.cmdAddSudo(ctx, hs.request(ownerID, "77")))
	assert.Equal(t, "⚠️ This user is already a sudo user!", hs.adapter.last())

	require.NoError(t, hs.h.cmdSudoList(ctx, hs.request(sudoID, "")))
	assert.Contains(t, hs.adapter.last(), "tg://user?id=77")
	assert.Contains(t, hs.adapter.last(), "Total: 2 sudo users")

	require.NoError(t, hs.h.cmdRemoveSudo(ctx, hs.request(ownerID, "77")))
	assert.Equal(t, "✅ User 77 removed from sudo users!", hs.adapter.last())
	assert.Equal(t, access.Everyone, hs.acl.LevelOf(77))

	require.NoError(t, hs.h.cmdRemoveSudo(ctx, hs.request(ownerID, "77")))
	assert.Equal(t, "⚠️ This user is not a sudo user!", hs.adapter.last())
}

func TestStatusAndAlive(t *testing.T) {
	hs := newHarness(t, 2)
	ctx := context.Background()

	require.NoError(t, hs.h.cmdSpam(broadcast.Unbounded)(ctx, hs.request(sudoID, "go")))
	require.NoError(t, hs.h.cmdStatus(ctx, hs.request(sudoID, "")))
	status := hs.adapter.last()
	assert.Contains(t, status, "2/2 available")
	assert.Contains(t, status, "@bota")
	assert.Contains(t, status, "uspam in -500")

	require.NoError(t, hs.h.cmdAlive(ctx, hs.request(userIDNobody, "")))
	alive := hs.adapter.last()
	assert.Contains(t, alive, "12.5%")
	assert.Contains(t, alive, "Total Bots</b>: 2")
	assert.Contains(t, alive, "Active Jobs</b>: 1/10")

	hs.adapter.mu.Lock()
	kb := hs.adapter.opts[len(hs.adapter.opts)-1].Keyboard
	hs.adapter.mu.Unlock()
	require.Len(t, kb, 1)
	assert.Len(t, kb[0], 2)
}

const userIDNobody = int64(99)

func TestStartAndHelpCallback(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()

	require.NoError(t, hs.h.cmdStart(ctx, hs.request(userIDNobody, "")))
	assert.Contains(t, hs.adapter.last(), "Welcome to Multi-Token Spam Bot")
	hs.adapter.mu.Lock()
	kb := hs.adapter.opts[len(hs.adapter.opts)-1].Keyboard
	hs.adapter.mu.Unlock()
	require.Len(t, kb, 2)
	assert.Equal(t, "start:help", kb[0][0].Data)

	require.NoError(t, hs.h.cbHelp(ctx, hs.request(userIDNobody, ""), ""))
	assert.Equal(t, "HELP", hs.adapter.last())
}

func TestPingEditsReply(t *testing.T) {
	hs := newHarness(t, 1)
	require.NoError(t, hs.h.cmdPing(context.Background(), hs.request(userIDNobody, "")))

	hs.adapter.mu.Lock()
	defer hs.adapter.mu.Unlock()
	require.Len(t, hs.adapter.edited, 1)
	assert.Contains(t, hs.adapter.edited[0], "🏓 Pong!")
	assert.Contains(t, hs.adapter.edited[0], "Uptime: 0d 0h 0m")
}

func TestRelayReportsAborts(t *testing.T) {
	hs := newHarness(t, 1)
	ctx := context.Background()

	hs.h.handleEvent(ctx, eventbus.Event{Type: eventbus.JobFinished, Data: broadcast.Finished{
		Job: broadcast.JobInfo{Dest: chat, State: broadcast.Aborted},
		Err: broadcast.ErrNoAvailableSender,
	}})
	assert.Equal(t, msgNoBots, hs.adapter.last())

	hs.h.handleEvent(ctx, eventbus.Event{Type: eventbus.JobFinished, Data: broadcast.Finished{
		Job: broadcast.JobInfo{Dest: chat, State: broadcast.Aborted},
		Err: errors.New("boom"),
	}})
	assert.Equal(t, "⚠️ Spam stopped after a send error.", hs.adapter.last())

	n := len(hs.adapter.sent)
	hs.h.handleEvent(ctx, eventbus.Event{Type: eventbus.JobFinished, Data: broadcast.Finished{
		Job: broadcast.JobInfo{Dest: chat, State: broadcast.Completed},
	}})
	assert.Len(t, hs.adapter.sent, n)
}

func TestRelayEndToEnd(t *testing.T) {
	bus := eventbus.New()
	c := &botClient{err: sender.Fatal(errors.New("unauthorized"))}
	pool := sender.NewPool([]sender.Member{{Username: "x", Client: c}})
	svc := broadcast.NewService(broadcast.Options{Pool: pool, Bus: bus, Log: logx.Nop()})
	ad := &chatAdapter{}
	h := New(Deps{Broadcast: svc, Adapter: ad, Bus: bus})
	defer func() { _ = svc.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Relay(ctx) }()

	// The first job takes the only bot out of rotation; later ones abort
	// straight away. Relay subscribes asynchronously, so keep starting jobs
	// until the notice shows up.
	require.Eventually(t, func() bool {
		if ad.last() == msgNoBots {
			return true
		}
		_, _ = svc.StartJob(ctx, broadcast.Request{Dest: chat, Kind: broadcast.BigSpam, Count: 2, Payload: "x"})
		return false
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, sender.Status{Total: 1, Available: 0}, pool.Status())
}
