package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"blastbot/internal/access"
	kit "blastbot/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	Chat kit.ChatTarget
	Text string
	Opt  *kit.SendOptions
}

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []sent
	answered []string
	menu     []kit.BotCommand
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{Chat: to, Text: text, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id+"|"+text)
	return nil
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menu = cmds
	return nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

const (
	ownerID = 1
	sudoID  = 2
	userID  = 3
	chatID  = -100
)

func msg(from int64, text string, group bool) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chatID, FromID: from, Text: text, IsGroup: group}}
}

func startRouter(t *testing.T, cmds []Command, cbs []CallbackRoute) (*fakeAdapter, chan kit.Update) {
	t.Helper()
	ad := &fakeAdapter{}
	m := NewCommandManager(Options{
		Adapter:     ad,
		Access:      access.New(ownerID, []int64{sudoID}),
		BotUsername: "@BlastBot",
		Workers:     2,
	})
	m.SetRegistry(cmds, cbs)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 16)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ad, updates
}

func echo(name string, level access.Level) Command {
	return Command{
		Name:        name,
		Description: name + " things",
		Access:      level,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, req.Command+"|"+req.ArgText+"|"+strings.Join(req.Args, ","))
		},
	}
}

func waitText(t *testing.T, ad *fakeAdapter, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, s := range ad.texts() {
			if s == want {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "never saw %q, got %q", want, ad.texts())
}

func TestAccessLevels(t *testing.T) {
	ad, up := startRouter(t, []Command{echo("spam", access.Sudo), echo("addsudo", access.Owner), echo("ping", access.Everyone)}, nil)

	up <- msg(userID, "/spam 3 hi", false)
	waitText(t, ad, msgUnauthorized)

	up <- msg(sudoID, "/addsudo 9", false)
	waitText(t, ad, msgOwnerOnly)

	up <- msg(userID, "/ping", false)
	waitText(t, ad, "ping||")

	up <- msg(sudoID, "/spam 3  hello   world", false)
	waitText(t, ad, "spam|3  hello   world|3,hello,world")

	up <- msg(ownerID, "/addsudo 9", false)
	waitText(t, ad, "addsudo|9|9")
}

func TestBotMentionFiltering(t *testing.T) {
	ad, up := startRouter(t, []Command{echo("ping", access.Everyone)}, nil)

	up <- msg(userID, "/ping@otherbot", true)
	up <- msg(userID, "/PING@blastbot x", true)
	waitText(t, ad, "ping|x|x")
	assert.Len(t, ad.texts(), 1)
}

func TestUnknownCommandOnlyAnsweredInPrivate(t *testing.T) {
	ad, up := startRouter(t, []Command{echo("ping", access.Everyone)}, nil)

	up <- msg(userID, "/nope", true)
	up <- msg(userID, "just chatting", false)
	up <- msg(userID, "/nope", false)
	waitText(t, ad, "Unknown command. Try /help")
	assert.Len(t, ad.texts(), 1)
}

func TestCallbackRouting(t *testing.T) {
	got := make(chan string, 1)
	ad, up := startRouter(t, nil, []CallbackRoute{{
		Scope:  "start",
		Action: "help",
		Access: access.Everyone,
		Handle: func(_ context.Context, _ *Request, payload string) error {
			got <- payload
			return nil
		},
	}, {
		Scope:  "admin",
		Action: "x",
		Access: access.Owner,
		Handle: func(context.Context, *Request, string) error { return nil },
	}})

	up <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c1", FromID: userID, ChatID: chatID, Data: "start:help:p1"}}
	select {
	case p := <-got:
		assert.Equal(t, "p1", p)
	case <-time.After(2 * time.Second):
		t.Fatal("callback handler not called")
	}

	up <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c2", FromID: userID, ChatID: chatID, Data: "admin:x"}}
	require.Eventually(t, func() bool {
		ad.mu.Lock()
		defer ad.mu.Unlock()
		for _, a := range ad.answered {
			if a == "c2|forbidden" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHelpFiltersByLevel(t *testing.T) {
	ad, up := startRouter(t, []Command{echo("spam", access.Sudo), echo("stopall", access.Owner), echo("ping", access.Everyone)}, nil)

	up <- msg(userID, "/help", false)
	require.Eventually(t, func() bool { return len(ad.texts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	text := ad.texts()[0]
	assert.Contains(t, text, "/ping")
	assert.Contains(t, text, "/help")
	assert.NotContains(t, text, "/spam")
	assert.NotContains(t, text, "/stopall")

	up <- msg(ownerID, "/help spam", false)
	require.Eventually(t, func() bool { return len(ad.texts()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, ad.texts()[1], "sudo only")
}

func TestMenuPublished(t *testing.T) {
	ad, _ := startRouter(t, []Command{echo("spam", access.Sudo), echo("ping", access.Everyone)}, nil)
	require.Eventually(t, func() bool {
		ad.mu.Lock()
		defer ad.mu.Unlock()
		return len(ad.menu) == 3
	}, 2*time.Second, 5*time.Millisecond)

	ad.mu.Lock()
	defer ad.mu.Unlock()
	assert.Equal(t, "help", ad.menu[0].Command)
	assert.Equal(t, "spam", ad.menu[2].Command)
	assert.True(t, strings.HasPrefix(ad.menu[2].Description, "🔒"))
}

func TestPanicInHandlerIsContained(t *testing.T) {
	boom := Command{Name: "boom", Access: access.Everyone, Handle: func(context.Context, *Request) error { panic("x") }}
	ad, up := startRouter(t, []Command{boom, echo("ping", access.Everyone)}, nil)

	up <- msg(userID, "/boom", false)
	up <- msg(userID, "/ping", false)
	waitText(t, ad, "ping||")
}

func TestParseHelpers(t *testing.T) {
	w, rest, ok := splitCommand("  /spam 10   hi  there ")
	require.True(t, ok)
	assert.Equal(t, "spam", w)
	assert.Equal(t, "10   hi  there", rest)

	_, _, ok = splitCommand("hello")
	assert.False(t, ok)
	_, _, ok = splitCommand("/")
	assert.False(t, ok)

	assert.Equal(t, "hi  there", RestAfter("10   hi  there", 1))
	assert.Equal(t, "", RestAfter("10", 1))
	assert.Equal(t, "a b", RestAfter(" a b ", 0))

	assert.Equal(t, []string{"a", "b c", "d", "e f"}, tokenizeCommandLine(`a "b c" 'd' e\ f`))
	assert.Nil(t, tokenizeCommandLine("   "))
}

func TestSanitizeTelegramCommand(t *testing.T) {
	assert.Equal(t, "big_spam", sanitizeTelegramCommand("Big-Spam"))
	assert.Equal(t, "cmd_1x", sanitizeTelegramCommand("1x"))
	assert.Equal(t, "", sanitizeTelegramCommand("!!"))
	assert.Len(t, sanitizeTelegramCommand(strings.Repeat("a", 40)), 32)
}
