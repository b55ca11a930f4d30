package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"blastbot/internal/access"
	"blastbot/internal/runtime/supervisor"
	kit "blastbot/internal/transport"
	logx "blastbot/pkg/logx"
)

const (
	msgUnauthorized = "🚫 You are not authorized to use this command!"
	msgOwnerOnly    = "🚫 Only the owner can use this command!"
	msgBusy         = "⏳ Busy, try again in a moment."
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      access.Level
	Timeout     time.Duration
	Handle      HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackRoute handles inline button data of the form "scope:action[:payload]".
type CallbackRoute struct {
	Scope   string
	Action  string
	Access  access.Level
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	FromName string
	IsGroup  bool
	Level    access.Level
	Command  string
	// Args are the tokens after the command word; ArgText is the same text
	// untouched, for handlers that take free-form text.
	Args    []string
	ArgText string
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends plain text to the request's chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML sends HTML with an optional inline keyboard.
func (r *Request) ReplyHTML(ctx context.Context, html string, keyboard [][]kit.Button) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, html, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, Keyboard: keyboard})
	return err
}

type Options struct {
	Adapter kit.Adapter
	Access  *access.List
	Log     logx.Logger
	// BotUsername makes "/cmd@otherbot" in groups be ignored.
	BotUsername string
	// Workers bounds concurrent handlers; defaults to NumCPU (min 2).
	Workers int
	// Parent runs background work such as the menu update; optional.
	Parent *supervisor.Supervisor
}

type CommandManager struct {
	mu    sync.RWMutex
	cmds  map[string]*Command
	alias map[string]*Command
	list  []Command

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute

	acl     *access.List
	log     logx.Logger
	adapter kit.Adapter
	botName string
	workers int
	parentMu sync.Mutex
	parent   *supervisor.Supervisor

	jobs chan func()
}

func NewCommandManager(opts Options) *CommandManager {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	acl := opts.Access
	if acl == nil {
		acl = access.New(0, nil)
	}
	return &CommandManager{
		cmds:      map[string]*Command{},
		alias:     map[string]*Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		acl:       acl,
		log:       log.With(logx.String("comp", "telegram.router")),
		adapter:   opts.Adapter,
		botName:   strings.ToLower(strings.TrimPrefix(opts.BotUsername, "@")),
		workers:   opts.Workers,
		parent:    opts.Parent,
		jobs:      make(chan func(), 256),
	}
}

// SetParent makes background work such as the menu update run under sup.
func (m *CommandManager) SetParent(sup *supervisor.Supervisor) {
	m.parentMu.Lock()
	m.parent = sup
	m.parentMu.Unlock()
}

// SetRegistry replaces the command and callback tables. /help is always
// added.
func (m *CommandManager) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	cmds = append(cmds, Command{
		Name:        "help",
		Description: "show available commands",
		Usage:       "/help [command]",
		Access:      access.Everyone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText(req.Args, req.Level), nil)
		},
	})

	byName := map[string]*Command{}
	alias := map[string]*Command{}
	list := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		cc := c
		cc.Name = name
		byName[name] = &cc
		list = append(list, cc)
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" && a != name {
				alias[a] = &cc
			}
		}
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, r := range cbs {
		s, a := strings.TrimSpace(r.Scope), strings.TrimSpace(r.Action)
		if s == "" || a == "" || r.Handle == nil {
			continue
		}
		if cb[s] == nil {
			cb[s] = map[string]CallbackRoute{}
		}
		cb[s][a] = r
	}

	m.mu.Lock()
	m.cmds, m.alias, m.list = byName, alias, list
	m.mu.Unlock()
	m.cbMu.Lock()
	m.callbacks = cb
	m.cbMu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		menu := buildTelegramMenuCommands(list)
		run := func(ctx context.Context) error {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(cctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
			return nil
		}
		m.parentMu.Lock()
		parent := m.parent
		m.parentMu.Unlock()
		if parent != nil {
			parent.Go("telegram.menu.update", run)
		} else {
			go func() { _ = run(context.Background()) }()
		}
	}
}

func (m *CommandManager) lookup(word string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cmds[word]; ok {
		return c, true
	}
	c, ok := m.alias[word]
	return c, ok
}

// DispatchLoop routes updates until ctx is done or updates closes. Handlers
// run on a bounded worker pool.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := m.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 2 {
		workers = 2
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(m.log))
	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					func() {
						defer func() {
							if r := recover(); r != nil {
								m.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *CommandManager) routeUpdate(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		m.routeMessage(ctx, up)
	case kit.UpdateCallback:
		m.routeCallback(ctx, up)
	}
}

func (m *CommandManager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	word, argText, ok := splitCommand(msg.Text)
	if !ok {
		return
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		target := word[i+1:]
		word = word[:i]
		if m.botName != "" && !strings.EqualFold(target, m.botName) {
			return
		}
	}
	word = strings.ToLower(word)
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := m.lookup(word)
	if !ok {
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		}
		return
	}

	level := m.acl.LevelOf(msg.FromID)
	if level < cmd.Access {
		deny := msgUnauthorized
		if cmd.Access == access.Owner {
			deny = msgOwnerOnly
		}
		_, _ = m.adapter.SendText(ctx, chat, deny, nil)
		m.log.Info("command denied", logx.String("cmd", cmd.Name), logx.Int64("from_id", msg.FromID), logx.Int64("chat_id", msg.ChatID))
		return
	}

	rid := newReqID()
	req := &Request{
		Update:   up,
		Chat:     chat,
		FromID:   msg.FromID,
		FromName: msg.FromName,
		IsGroup:  msg.IsGroup,
		Level:    level,
		Command:  cmd.Name,
		Args:     tokenizeCommandLine(argText),
		ArgText:  argText,
		ReqID:    rid,
		Adapter:  m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	final := Chain(cmd.Handle, MWPanicRecover(m.log), MWRequestLog(m.log), MWTimeout(cmd.Timeout))
	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = m.adapter.SendText(ctx, chat, msgBusy, nil)
	}
}

func (m *CommandManager) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	scope, action, payload := parts[0], parts[1], ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	m.cbMu.RLock()
	route, ok := m.callbacks[scope][action]
	m.cbMu.RUnlock()
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	level := m.acl.LevelOf(cb.FromID)
	if level < route.Access {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}

	rid := newReqID()
	name := "cb:" + scope + ":" + action
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		Level:   level,
		Command: name,
		Payload: payload,
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("from_id", cb.FromID),
			logx.String("cmd", name),
		),
	}
	h := func(ctx context.Context, req *Request) error { return route.Handle(ctx, req, req.Payload) }
	final := Chain(h, MWPanicRecover(m.log), MWRequestLog(m.log), MWTimeout(route.Timeout))
	if !m.tryEnqueue(func() {
		_ = final(ctx, req)
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
	}) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (m *CommandManager) tryEnqueue(fn func()) bool {
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}
