package commands

import (
	"context"
	"fmt"
	"time"

	"blastbot/internal/broadcast"
	"blastbot/internal/sysinfo"
	kit "blastbot/internal/transport"
	"blastbot/internal/transport/telegram/router"
	logx "blastbot/pkg/logx"
	"blastbot/pkg/tgui"
)

// withLinks appends the configured link buttons to kb, two per row.
func (h *Handlers) withLinks(kb *tgui.Inline) *tgui.Inline {
	var btns []kit.Button
	for _, b := range []kit.Button{
		tgui.URLBtn("📢 Channel", h.d.Links.Channel),
		tgui.URLBtn("👥 Group", h.d.Links.Group),
		tgui.URLBtn("💬 Support", h.d.Links.Support),
	} {
		if b.URL != "" {
			btns = append(btns, b)
		}
	}
	for _, row := range tgui.Grid2(btns) {
		kb.Row(row...)
	}
	return kb
}

func (h *Handlers) ownerLine() string {
	owner := h.d.Access.Owner()
	name := "Click Here"
	if h.d.Links.OwnerUsername != "" {
		name = "@" + h.d.Links.OwnerUsername
	}
	return "👤 " + tgui.B("Owner:").String() + " " + tgui.Mention(name, owner).String()
}

func (h *Handlers) cmdStart(ctx context.Context, req *router.Request) error {
	kb := h.withLinks(tgui.NewInline().Row(tgui.Btn("📜 Help", tgui.Data("start", "help", ""))))
	msg := tgui.New().
		Title("🚀", "Welcome to Multi-Token Spam Bot").
		Blank().
		RawLine(h.ownerLine()).
		Blank().
		Line("Use /help to see all available commands.").
		Inline(kb).
		Build()
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (h *Handlers) cbHelp(ctx context.Context, req *router.Request, _ string) error {
	text := "Use /help to see all available commands."
	if h.d.Help != nil {
		text = h.d.Help(req.Level)
	}
	return req.ReplyHTML(ctx, text, nil)
}

func (h *Handlers) cmdPing(ctx context.Context, req *router.Request) error {
	start := time.Now()
	ref, err := req.Adapter.SendText(ctx, req.Chat, "🏓 Pinging...", nil)
	if err != nil {
		return err
	}
	rtt := time.Since(start)
	text := fmt.Sprintf("🏓 Pong! %.2fms\n⏳ Uptime: %s", float64(rtt.Microseconds())/1000, sysinfo.Uptime(time.Since(h.d.StartedAt)))
	return req.Adapter.EditText(ctx, ref, text, nil)
}

func (h *Handlers) cmdAlive(ctx context.Context, req *router.Request) error {
	st, err := h.d.Stats(ctx)
	if err != nil {
		req.Logger.Debug("partial system stats", logx.Err(err))
	}
	pool := h.d.Broadcast.PoolStatus()
	snap := h.d.Broadcast.Snapshot()

	jobs := fmt.Sprintf("%d", snap.Active)
	if c := h.d.Broadcast.MaxConcurrentJobs(); c > 0 {
		jobs = fmt.Sprintf("%d/%d", snap.Active, c)
	}

	msg := tgui.New().
		Title("🚀", "Bot is alive and kicking!").
		Blank().
		Section("📊 System Stats").
		KV("CPU Usage", fmt.Sprintf("%.1f%%", st.CPUPercent)).
		KV("RAM Usage", fmt.Sprintf("%.1f%%", st.MemPercent)).
		KV("Disk Usage", fmt.Sprintf("%.1f%%", st.DiskPercent)).
		KV("Uptime", sysinfo.Uptime(time.Since(h.d.StartedAt))).
		Blank().
		Section("🤖 Bot Status").
		KV("Total Bots", fmt.Sprintf("%d", pool.Total)).
		KV("Active Bots", fmt.Sprintf("%d", pool.Available)).
		KV("Active Jobs", jobs).
		Blank().
		RawLine(h.ownerLine()).
		Inline(h.withLinks(tgui.NewInline())).
		Build()
	_, err = msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (h *Handlers) cmdStatus(ctx context.Context, req *router.Request) error {
	pool := h.d.Broadcast.PoolStatus()
	snap := h.d.Broadcast.Snapshot()

	b := tgui.New().
		Title("📊", "Status").
		KV("Bots", fmt.Sprintf("%d/%d available", pool.Available, pool.Total)).
		KV("Active jobs", fmt.Sprintf("%d", snap.Active)).
		KV("Jobs since start", fmt.Sprintf("%d", snap.Total))
	if c := h.d.Broadcast.MaxConcurrentJobs(); c > 0 {
		b.KV("Job limit", fmt.Sprintf("%d", c))
	}

	if h.d.Senders != nil {
		b.Blank().Section("🤖 Bots")
		for _, s := range h.d.Senders() {
			mark := "✅"
			if !s.Available {
				mark = "⛔"
			}
			b.Line(fmt.Sprintf("%s @%s", mark, s.Username))
		}
	}

	if len(snap.Jobs) > 0 {
		b.Blank().Section("⚙️ Jobs")
		for _, j := range snap.Jobs {
			b.Line(jobLine(j))
		}
	}
	_, err := b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}

func jobLine(j broadcast.JobInfo) string {
	progress := fmt.Sprintf("%d/%d", j.Sent, j.Count)
	if j.Unbounded {
		progress = fmt.Sprintf("%d/∞", j.Sent)
	}
	line := fmt.Sprintf("• %s in %d: %s sent", j.Kind, j.Dest, progress)
	if j.Failed > 0 {
		line += fmt.Sprintf(", %d failed", j.Failed)
	}
	if j.Target != "" {
		line += " → " + j.Target
	}
	if j.Stopping {
		line += " (stopping)"
	}
	return line + ", " + sysinfo.Uptime(time.Since(j.StartedAt).Truncate(time.Second))
}
