package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	logx "blastbot/pkg/logx"
)

const (
	PolicyAbort    = "abort"
	PolicyContinue = "continue"

	// HealthCheckOff disables the periodic sender re-probe.
	HealthCheckOff = "off"

	defaultPollTimeout  = "10s"
	defaultHealthCheck  = "@every 5m"
	defaultProbeTimeout = "10s"
	defaultMaxJobs      = 50
	defaultDebugAddr    = "127.0.0.1:6060"
)

// Load parses path, applies environment overrides and defaults, and validates
// the result.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads a JSON or YAML file and decodes it strictly.
func Parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, b)
}

// Decode decodes raw config bytes. The file extension of path selects YAML
// (.yaml/.yml) or JSON.
func Decode(path string, b []byte) (*Config, error) {
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills omitted fields. Per-kind defaults live with the
// broadcast package and are merged there.
func (c *Config) ApplyDefaults() {
	toks := c.Telegram.Tokens[:0]
	for _, t := range c.Telegram.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			toks = append(toks, t)
		}
	}
	c.Telegram.Tokens = toks

	if strings.TrimSpace(c.Telegram.PollTimeout) == "" {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
	if c.Broadcast.MaxConcurrentJobs == 0 {
		c.Broadcast.MaxConcurrentJobs = defaultMaxJobs
	}
	if strings.TrimSpace(c.Senders.HealthCheck) == "" {
		c.Senders.HealthCheck = defaultHealthCheck
	}
	if strings.TrimSpace(c.Senders.ProbeTimeout) == "" {
		c.Senders.ProbeTimeout = defaultProbeTimeout
	}
	if strings.TrimSpace(c.Corpus.RaidFile) == "" {
		c.Corpus.RaidFile = "raid_messages.txt"
	}
	if strings.TrimSpace(c.Corpus.RomanticFile) == "" {
		c.Corpus.RomanticFile = "sraid_messages.txt"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Lock.Path) == "" {
		c.Lock.Path = filepath.Join(os.TempDir(), "blastbot.lock")
	}
	if strings.TrimSpace(c.Debug.Addr) == "" {
		c.Debug.Addr = defaultDebugAddr
	}
}

// Validate rejects configs the bot cannot start with.
func (c *Config) Validate() error {
	if len(c.Telegram.Tokens) == 0 {
		return errors.New("telegram.tokens: at least one bot token is required")
	}
	seen := make(map[string]struct{}, len(c.Telegram.Tokens))
	for i, t := range c.Telegram.Tokens {
		if _, dup := seen[t]; dup {
			return fmt.Errorf("telegram.tokens[%d]: duplicate token", i)
		}
		seen[t] = struct{}{}
	}
	if c.Telegram.OwnerID == 0 {
		return errors.New("telegram.owner_id is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if c.Broadcast.MaxConcurrentJobs < 0 {
		return errors.New("broadcast.max_concurrent_jobs must be >= 0")
	}
	for name, k := range c.Broadcast.Kinds {
		path := "broadcast.kinds." + name
		if k.Min < 0 || k.Max < 0 {
			return fmt.Errorf("%s: min/max must be >= 0", path)
		}
		if k.Min > 0 && k.Max > 0 && k.Min > k.Max {
			return fmt.Errorf("%s: min (%d) > max (%d)", path, k.Min, k.Max)
		}
		if _, err := ParseDurationField(path+".delay", k.Delay); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(k.OnSendError)) {
		case "", PolicyAbort, PolicyContinue:
		default:
			return fmt.Errorf("%s.on_send_error: want %q or %q, got %q", path, PolicyAbort, PolicyContinue, k.OnSendError)
		}
	}
	if c.Senders.RatePerSec < 0 {
		return errors.New("senders.rate_per_sec must be >= 0")
	}
	if hc := strings.TrimSpace(c.Senders.HealthCheck); hc != HealthCheckOff {
		if _, err := cron.ParseStandard(hc); err != nil {
			return fmt.Errorf("senders.health_check: invalid %q: %w", hc, err)
		}
	}
	if _, err := ParseDurationField("senders.probe_timeout", c.Senders.ProbeTimeout); err != nil {
		return err
	}
	if !logx.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Logging.Telegram.Enabled && c.Logging.Telegram.ChatID == 0 {
		return errors.New("logging.telegram.chat_id is required when logging.telegram.enabled is true")
	}
	if c.Debug.Enabled {
		if _, _, err := net.SplitHostPort(c.Debug.Addr); err != nil {
			return fmt.Errorf("debug.addr: %w", err)
		}
	}
	return nil
}
