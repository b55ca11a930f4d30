package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"blastbot/internal/access"
	"blastbot/internal/transport/telegram/router"
	logx "blastbot/pkg/logx"
	"blastbot/pkg/tgui"
)

func parseUserID(req *router.Request) (int64, bool) {
	if len(req.Args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handlers) cmdAddSudo(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return req.Reply(ctx, "Usage: /addsudo <user_id>")
	}
	id, ok := parseUserID(req)
	if !ok {
		return req.Reply(ctx, "❌ Invalid user ID!")
	}
	switch err := h.d.Access.Add(id); {
	case errors.Is(err, access.ErrAlreadySudo):
		return req.Reply(ctx, "⚠️ This user is already a sudo user!")
	case errors.Is(err, access.ErrIsOwner):
		return req.Reply(ctx, "⚠️ The owner already has full access!")
	case err != nil:
		return req.Reply(ctx, "❌ Invalid user ID!")
	}
	h.log.Info("sudo user added", logx.Int64("user_id", id), logx.Int64("by", req.FromID))
	return req.Reply(ctx, fmt.Sprintf("✅ User %d added to sudo users!", id))
}

func (h *Handlers) cmdRemoveSudo(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return req.Reply(ctx, "Usage: /removesudo <user_id>")
	}
	id, ok := parseUserID(req)
	if !ok {
		return req.Reply(ctx, "❌ Invalid user ID!")
	}
	switch err := h.d.Access.Remove(id); {
	case errors.Is(err, access.ErrNotSudo):
		return req.Reply(ctx, "⚠️ This user is not a sudo user!")
	case errors.Is(err, access.ErrIsOwner):
		return req.Reply(ctx, "⚠️ The owner cannot be removed!")
	case err != nil:
		return req.Reply(ctx, "❌ Invalid user ID!")
	}
	h.log.Info("sudo user removed", logx.Int64("user_id", id), logx.Int64("by", req.FromID))
	return req.Reply(ctx, fmt.Sprintf("✅ User %d removed from sudo users!", id))
}

func (h *Handlers) cmdSudoList(ctx context.Context, req *router.Request) error {
	users := h.d.Access.SudoUsers()
	b := tgui.New().
		Title("👑", "Sudo Users List").
		Blank().
		RawLine(tgui.B("Owner ID:").String() + " " + tgui.Code(strconv.FormatInt(h.d.Access.Owner(), 10)).String()).
		Blank().
		Section("Sudo Users:")
	if len(users) == 0 {
		b.Line("none")
	}
	for _, id := range users {
		b.RawLine("• " + tgui.Mention(strconv.FormatInt(id, 10), id).String())
	}
	b.Blank().Line(fmt.Sprintf("Total: %d sudo users", len(users)))
	_, err := b.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}
