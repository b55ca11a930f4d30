package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"blastbot/internal/broadcast"
	"blastbot/internal/transport/telegram/router"
	logx "blastbot/pkg/logx"
)

const (
	msgNotANumber = "Count must be a number"
	msgNoTarget   = "Username must start with @"
)

func (h *Handlers) usage(k broadcast.Kind) string {
	pol, ok := h.d.Broadcast.Policy(k)
	switch {
	case !ok:
		return "/" + string(k)
	case pol.Unbounded:
		return fmt.Sprintf("/%s <message>", k)
	case pol.Templated:
		return fmt.Sprintf("/%s <count (%d-%d)> <@username>", k, pol.Min, pol.Max)
	default:
		return fmt.Sprintf("/%s <count (%d-%d)> <message>", k, pol.Min, pol.Max)
	}
}

// cmdSpam handles spam, bspam and uspam. The message is the raw text after
// the count so spacing and quotes survive.
func (h *Handlers) cmdSpam(k broadcast.Kind) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		pol, _ := h.d.Broadcast.Policy(k)
		r := broadcast.Request{Dest: req.Chat.ChatID, Kind: k, RequestedBy: req.FromID}

		if pol.Unbounded {
			r.Payload = req.ArgText
			if strings.TrimSpace(r.Payload) == "" {
				return req.Reply(ctx, "Usage: "+h.usage(k))
			}
		} else {
			if len(req.Args) < 2 {
				return req.Reply(ctx, "Usage: "+h.usage(k))
			}
			n, err := strconv.Atoi(req.Args[0])
			if err != nil {
				return req.Reply(ctx, msgNotANumber)
			}
			r.Count = n
			r.Payload = router.RestAfter(req.ArgText, 1)
		}
		return h.start(ctx, req, r)
	}
}

func (h *Handlers) cmdRaid(k broadcast.Kind) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		if len(req.Args) < 2 {
			return req.Reply(ctx, "Usage: "+h.usage(k))
		}
		n, err := strconv.Atoi(req.Args[0])
		if err != nil {
			return req.Reply(ctx, msgNotANumber)
		}
		target := req.Args[1]
		if !strings.HasPrefix(target, "@") || len(target) < 2 {
			return req.Reply(ctx, msgNoTarget)
		}
		return h.start(ctx, req, broadcast.Request{
			Dest:        req.Chat.ChatID,
			Kind:        k,
			Count:       n,
			Target:      target,
			RequestedBy: req.FromID,
		})
	}
}

func (h *Handlers) start(ctx context.Context, req *router.Request, r broadcast.Request) error {
	info, err := h.d.Broadcast.StartJob(ctx, r)
	if err != nil {
		req.Logger.Info("job not started", logx.String("kind", string(r.Kind)), logx.Err(err))
		return req.Reply(ctx, h.startError(err))
	}
	if info.Unbounded {
		return req.Reply(ctx, "Unlimited spam started! Use /stop to stop.")
	}
	return nil
}

func (h *Handlers) startError(err error) string {
	switch {
	case errors.Is(err, broadcast.ErrInvalidArgument):
		msg := strings.TrimPrefix(err.Error(), broadcast.ErrInvalidArgument.Error()+": ")
		if msg == "" {
			return "❌ Invalid arguments"
		}
		return "❌ " + strings.ToUpper(msg[:1]) + msg[1:]
	case errors.Is(err, broadcast.ErrAlreadyActive):
		return "⚠️ Something is already running in this chat. Use /stop first."
	case errors.Is(err, broadcast.ErrRejected):
		return fmt.Sprintf("⏳ Too many active jobs (limit %d). Try again later.", h.d.Broadcast.MaxConcurrentJobs())
	case errors.Is(err, broadcast.ErrClosed):
		return "Bot is shutting down."
	}
	return "❌ Couldn't start the job"
}

func (h *Handlers) cmdStop(ctx context.Context, req *router.Request) error {
	if err := h.d.Broadcast.StopJob(req.Chat.ChatID); err != nil {
		if errors.Is(err, broadcast.ErrNotActive) {
			return req.Reply(ctx, "Nothing is running in this chat.")
		}
		return err
	}
	return req.Reply(ctx, "✅ Spam stopped in this chat!")
}

func (h *Handlers) cmdStopAll(ctx context.Context, req *router.Request) error {
	n := h.d.Broadcast.StopAll()
	return req.Reply(ctx, fmt.Sprintf("All spam activities stopped! (%d jobs)", n))
}
