package commands

import (
	"context"
	"errors"

	"blastbot/internal/broadcast"
	"blastbot/internal/eventbus"
	kit "blastbot/internal/transport"
	logx "blastbot/pkg/logx"
)

const msgNoBots = "⚠️ No available bots at the moment"

// Relay reports aborted jobs to their chat and logs senders leaving the
// pool. It returns when ctx is done.
func (h *Handlers) Relay(ctx context.Context) error {
	events, unsub := h.d.Bus.Subscribe(64, eventbus.JobFinished, eventbus.SenderDown)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			h.handleEvent(ctx, e)
		}
	}
}

func (h *Handlers) handleEvent(ctx context.Context, e eventbus.Event) {
	switch data := e.Data.(type) {
	case broadcast.Finished:
		if data.Job.State != broadcast.Aborted || h.d.Adapter == nil {
			return
		}
		text := "⚠️ Spam stopped after a send error."
		if errors.Is(data.Err, broadcast.ErrNoAvailableSender) {
			text = msgNoBots
		}
		if _, err := h.d.Adapter.SendText(ctx, kit.ChatTarget{ChatID: data.Job.Dest}, text, nil); err != nil {
			h.log.Warn("abort notice failed", logx.Int64("chat_id", data.Job.Dest), logx.Err(err))
		}
	case broadcast.SenderEvent:
		h.log.Warn("bot removed from rotation",
			logx.Int("sender_id", data.SenderID),
			logx.String("username", data.Username),
			logx.String("err", data.Err),
		)
	}
}
