package config

// Config is read once at startup and treated as immutable afterwards.
//
// Fields tagged with env can be overridden from the environment, which is the
// usual way to keep bot tokens out of the file:
//
//	BLASTBOT_TOKENS=123:abc,456:def BLASTBOT_OWNER_ID=42 blastbot run
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Links     LinksConfig     `json:"links,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Senders   SendersConfig   `json:"senders,omitempty"`
	Corpus    CorpusConfig    `json:"corpus,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Lock      LockConfig      `json:"lock,omitempty"`
	Debug     DebugConfig     `json:"debug,omitempty"`
}

type TelegramConfig struct {
	// Tokens lists every bot in the sender pool. The first token is also the
	// primary bot that receives commands.
	Tokens      []string `json:"tokens"                  env:"BLASTBOT_TOKENS"        envSeparator:","`
	OwnerID     int64    `json:"owner_id"                env:"BLASTBOT_OWNER_ID"`
	SudoUserIDs []int64  `json:"sudo_user_ids,omitempty" env:"BLASTBOT_SUDO_USER_IDS" envSeparator:","`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// LinksConfig feeds /start, /help and /alive.
type LinksConfig struct {
	Channel       string `json:"channel,omitempty"`
	Group         string `json:"group,omitempty"`
	Support       string `json:"support,omitempty"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

// BroadcastConfig controls job admission and per-kind policy.
//
// Kinds is keyed by command name: spam, bspam, uspam, raid, sraid. Omitted
// kinds and omitted fields keep built-in defaults.
type BroadcastConfig struct {
	MaxConcurrentJobs int                   `json:"max_concurrent_jobs,omitempty" env:"BLASTBOT_MAX_CONCURRENT_JOBS"`
	Kinds             map[string]KindConfig `json:"kinds,omitempty"`
}

type KindConfig struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
	// Delay is the minimum pause between two sends of the same job.
	Delay string `json:"delay,omitempty"`
	// OnSendError is "abort" or "continue".
	OnSendError string `json:"on_send_error,omitempty"`
}

type SendersConfig struct {
	// RatePerSec caps sends per bot. 0 disables the limiter.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// HealthCheck is a cron spec (robfig/cron syntax, "@every 5m" works) for
	// re-probing unavailable bots. Empty keeps the default; "off" disables.
	HealthCheck  string `json:"health_check,omitempty"`
	ProbeTimeout string `json:"probe_timeout,omitempty"`
}

type CorpusConfig struct {
	RaidFile     string `json:"raid_file,omitempty"     env:"BLASTBOT_RAID_FILE"`
	RomanticFile string `json:"romantic_file,omitempty" env:"BLASTBOT_ROMANTIC_FILE"`
	// Watch reloads the files when they change on disk.
	Watch bool `json:"watch,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level,omitempty" env:"BLASTBOT_LOG_LEVEL"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id,omitempty" env:"BLASTBOT_LOG_CHAT_ID"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type LockConfig struct {
	// Path of the single-instance lock file. Defaults to <tmp>/blastbot.lock.
	Path string `json:"path,omitempty" env:"BLASTBOT_LOCK_PATH"`
}

// DebugConfig controls the optional HTTP endpoint serving /healthz, /status
// and net/http/pprof.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Token is required for a non-loopback Addr unless AllowInsecure is set.
	Token         string `json:"token,omitempty" env:"BLASTBOT_DEBUG_TOKEN"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}
