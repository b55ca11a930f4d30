// Package commands holds the chat commands of the bot and the relay that
// reports finished jobs back to their chats.
package commands

import (
	"context"
	"time"

	"blastbot/internal/access"
	"blastbot/internal/broadcast"
	"blastbot/internal/eventbus"
	"blastbot/internal/sender"
	"blastbot/internal/sysinfo"
	kit "blastbot/internal/transport"
	"blastbot/internal/transport/telegram/router"
	logx "blastbot/pkg/logx"
)

// Broadcaster is the part of broadcast.Service the commands drive.
type Broadcaster interface {
	StartJob(ctx context.Context, req broadcast.Request) (*broadcast.JobInfo, error)
	StopJob(dest int64) error
	StopAll() int
	Job(dest int64) (broadcast.JobInfo, bool)
	Snapshot() broadcast.Snapshot
	PoolStatus() broadcast.PoolStatus
	MaxConcurrentJobs() int
	Policy(k broadcast.Kind) (broadcast.Policy, bool)
}

// Links are shown by /start and /alive. Empty links are omitted.
type Links struct {
	Channel       string
	Group         string
	Support       string
	OwnerUsername string
}

type Deps struct {
	Broadcast Broadcaster
	Access    *access.List
	Adapter   kit.Adapter
	Bus       eventbus.Bus
	Log       logx.Logger
	Links     Links
	StartedAt time.Time

	// Senders lists the pool for /status; optional.
	Senders func() []sender.Info
	// Help renders the command list for /start's help button; optional.
	Help func(level access.Level) string
	// Stats samples the host for /alive; defaults to sysinfo.Sample on "/".
	Stats func(ctx context.Context) (sysinfo.Stats, error)
}

type Handlers struct {
	d   Deps
	log logx.Logger
}

func New(d Deps) *Handlers {
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	if d.Stats == nil {
		d.Stats = func(ctx context.Context) (sysinfo.Stats, error) { return sysinfo.Sample(ctx, "/") }
	}
	if d.Access == nil {
		d.Access = access.New(0, nil)
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handlers{d: d, log: log.With(logx.String("comp", "commands"))}
}

// Commands is the full command table for the router.
func (h *Handlers) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "start the bot", Access: access.Everyone, Handle: h.cmdStart},
		{Name: "ping", Description: "round-trip time and uptime", Access: access.Everyone, Timeout: 10 * time.Second, Handle: h.cmdPing},
		{Name: "alive", Description: "system and bot status", Access: access.Everyone, Timeout: 10 * time.Second, Handle: h.cmdAlive},

		{Name: "spam", Description: "send limited spam", Usage: h.usage(broadcast.Spam), Access: access.Sudo, Handle: h.cmdSpam(broadcast.Spam)},
		{Name: "bspam", Description: "send big spam", Usage: h.usage(broadcast.BigSpam), Access: access.Sudo, Handle: h.cmdSpam(broadcast.BigSpam)},
		{Name: "uspam", Description: "unlimited spam, /stop to stop", Usage: h.usage(broadcast.Unbounded), Access: access.Sudo, Handle: h.cmdSpam(broadcast.Unbounded)},
		{Name: "raid", Description: "raid a user", Usage: h.usage(broadcast.Raid), Access: access.Sudo, Handle: h.cmdRaid(broadcast.Raid)},
		{Name: "sraid", Description: "shayari raid", Usage: h.usage(broadcast.RomanticRaid), Access: access.Sudo, Handle: h.cmdRaid(broadcast.RomanticRaid)},
		{Name: "stop", Description: "stop the job in this chat", Access: access.Sudo, Handle: h.cmdStop},
		{Name: "status", Description: "bots and running jobs", Access: access.Sudo, Handle: h.cmdStatus},
		{Name: "sudolist", Description: "list sudo users", Access: access.Sudo, Handle: h.cmdSudoList},

		{Name: "stopall", Description: "stop every job", Access: access.Owner, Handle: h.cmdStopAll},
		{Name: "addsudo", Description: "add a sudo user", Usage: "/addsudo <user_id>", Access: access.Owner, Handle: h.cmdAddSudo},
		{Name: "removesudo", Description: "remove a sudo user", Usage: "/removesudo <user_id>", Access: access.Owner, Handle: h.cmdRemoveSudo},
	}
}

func (h *Handlers) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: "start", Action: "help", Access: access.Everyone, Handle: h.cbHelp},
	}
}
