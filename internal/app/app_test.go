package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blastbot/internal/broadcast"
	"blastbot/internal/config"
	"blastbot/internal/sender"
	logx "blastbot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPolicies(t *testing.T) {
	cfg := &config.Config{}
	cfg.Broadcast.Kinds = map[string]config.KindConfig{
		"spam":  {Max: 50, Delay: "1s", OnSendError: "continue"},
		"uspam": {Delay: "2s"},
	}
	pol, err := mapPolicies(cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, pol[broadcast.Spam].Min)
	assert.Equal(t, 50, pol[broadcast.Spam].Max)
	assert.Equal(t, time.Second, pol[broadcast.Spam].Delay)
	assert.Equal(t, broadcast.Continue, pol[broadcast.Spam].OnSendError)
	assert.Equal(t, 2*time.Second, pol[broadcast.Unbounded].Delay)
	assert.Equal(t, broadcast.DefaultPolicies()[broadcast.Raid], pol[broadcast.Raid])
}

func TestMapPoliciesRejects(t *testing.T) {
	for name, kinds := range map[string]map[string]config.KindConfig{
		"unknown kind": {"mega": {}},
		"bad delay":    {"spam": {Delay: "soon"}},
		"min over max": {"raid": {Min: 500}},
		"bad policy":   {"bspam": {OnSendError: "retry"}},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Broadcast.Kinds = kinds
			_, err := mapPolicies(cfg)
			assert.Error(t, err)
		})
	}
}

type nopClient struct{}

func (nopClient) SendText(context.Context, int64, string) error { return nil }
func (nopClient) Probe(context.Context) error                   { return nil }

func TestDialSendersKeepsWorkingTokensInOrder(t *testing.T) {
	dial := func(_ context.Context, token string) (sender.Member, error) {
		if strings.HasPrefix(token, "bad") {
			return sender.Member{}, errors.New("unauthorized")
		}
		// finish out of order
		if token == "1:a" {
			time.Sleep(20 * time.Millisecond)
		}
		return sender.Member{Username: "bot_" + token[:1], Client: nopClient{}}, nil
	}

	members, err := dialSenders(context.Background(), []string{"1:a", "bad:x", "3:c"}, dial, logx.Nop())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "bot_1", members[0].Username)
	assert.Equal(t, "bot_3", members[1].Username)
}

func TestDialSendersAllFail(t *testing.T) {
	dial := func(context.Context, string) (sender.Member, error) { return sender.Member{}, errors.New("nope") }
	_, err := dialSenders(context.Background(), []string{"1:a", "2:b"}, dial, logx.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bot could be initialized")
	assert.Contains(t, err.Error(), "token 1: nope")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "123456:***", redact("123456:ABC-secret"))
	assert.Equal(t, "abcd***", redact("abcdefgh"))
	assert.Equal(t, "***", redact("ab"))
}

func TestMapLoggingCarriesTelegramTarget(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Telegram = config.LoggingTelegram{Enabled: true, ChatID: -42, ThreadID: 7, RatePerSec: 2}
	lc := mapLogging(cfg)
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.Telegram.Enabled)
	assert.Equal(t, int64(-42), lc.Telegram.ChatID)
	assert.Equal(t, 7, lc.Telegram.ThreadID)
}
