package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "telegram": {"tokens": ["111:aaa", " 222:bbb "], "owner_id": 42, "sudo_user_ids": [7]},
  "broadcast": {
    "max_concurrent_jobs": 3,
    "kinds": {"spam": {"min": 1, "max": 10, "delay": "50ms", "on_send_error": "continue"}}
  },
  "logging": {"level": "debug", "console": true}
}`

const sampleYAML = `
telegram:
  tokens: ["111:aaa"]
  owner_id: 42
senders:
  rate_per_sec: 5
  health_check: "@every 1m"
corpus:
  raid_file: raid.txt
  watch: true
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"111:aaa", "222:bbb"}, cfg.Telegram.Tokens)
	assert.Equal(t, int64(42), cfg.Telegram.OwnerID)
	assert.Equal(t, []int64{7}, cfg.Telegram.SudoUserIDs)
	assert.Equal(t, 3, cfg.Broadcast.MaxConcurrentJobs)
	assert.Equal(t, "50ms", cfg.Broadcast.Kinds["spam"].Delay)

	assert.Equal(t, defaultPollTimeout, cfg.Telegram.PollTimeout)
	assert.Equal(t, defaultHealthCheck, cfg.Senders.HealthCheck)
	assert.Equal(t, "raid_messages.txt", cfg.Corpus.RaidFile)
	assert.Equal(t, "sraid_messages.txt", cfg.Corpus.RomanticFile)
	assert.NotEmpty(t, cfg.Lock.Path)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, defaultDebugAddr, cfg.Debug.Addr)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"111:aaa"}, cfg.Telegram.Tokens)
	assert.Equal(t, 5, cfg.Senders.RatePerSec)
	assert.Equal(t, "@every 1m", cfg.Senders.HealthCheck)
	assert.Equal(t, "raid.txt", cfg.Corpus.RaidFile)
	assert.True(t, cfg.Corpus.Watch)
	assert.Equal(t, defaultMaxJobs, cfg.Broadcast.MaxConcurrentJobs)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BLASTBOT_TOKENS", "999:zzz,888:yyy")
	t.Setenv("BLASTBOT_OWNER_ID", "7")
	t.Setenv("BLASTBOT_MAX_CONCURRENT_JOBS", "9")

	cfg, err := Load(writeFile(t, "config.json", sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"999:zzz", "888:yyy"}, cfg.Telegram.Tokens)
	assert.Equal(t, int64(7), cfg.Telegram.OwnerID)
	assert.Equal(t, 9, cfg.Broadcast.MaxConcurrentJobs)
}

func TestDecodeRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	_, err := Decode("c.json", []byte(`{"telegram": {"tokens": ["a"], "owner_id": 1, "bogus": true}}`))
	require.Error(t, err)

	_, err = Decode("c.json", []byte(`{"telegram": {"tokens": ["a"], "owner_id": 1}} {}`))
	require.Error(t, err)

	_, err = Decode("c.yml", []byte("telegram:\n  nope: 1\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{Telegram: TelegramConfig{Tokens: []string{"a"}, OwnerID: 1}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no tokens", func(c *Config) { c.Telegram.Tokens = nil }},
		{"duplicate tokens", func(c *Config) { c.Telegram.Tokens = []string{"a", "a"} }},
		{"no owner", func(c *Config) { c.Telegram.OwnerID = 0 }},
		{"bad poll timeout", func(c *Config) { c.Telegram.PollTimeout = "soon" }},
		{"negative ceiling", func(c *Config) { c.Broadcast.MaxConcurrentJobs = -1 }},
		{"min above max", func(c *Config) {
			c.Broadcast.Kinds = map[string]KindConfig{"spam": {Min: 10, Max: 2}}
		}},
		{"bad delay", func(c *Config) {
			c.Broadcast.Kinds = map[string]KindConfig{"raid": {Delay: "-1s"}}
		}},
		{"bad policy", func(c *Config) {
			c.Broadcast.Kinds = map[string]KindConfig{"raid": {OnSendError: "retry"}}
		}},
		{"bad cron", func(c *Config) { c.Senders.HealthCheck = "every now and then" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log chat missing", func(c *Config) { c.Logging.Telegram.Enabled = true }},
		{"bad debug addr", func(c *Config) { c.Debug = DebugConfig{Enabled: true, Addr: "6060"} }},
	}

	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateHealthCheckOff(t *testing.T) {
	c := &Config{Telegram: TelegramConfig{Tokens: []string{"a"}, OwnerID: 1}, Senders: SendersConfig{HealthCheck: HealthCheckOff}}
	c.ApplyDefaults()
	assert.NoError(t, c.Validate())
}
