package app

import (
	"fmt"
	"sort"
	"time"

	"blastbot/internal/broadcast"
	"blastbot/internal/commands"
	"blastbot/internal/config"
	"blastbot/internal/corpus"
	logx "blastbot/pkg/logx"
)

// mapPolicies merges broadcast.kinds over the built-in table. Unknown kind
// names are rejected.
func mapPolicies(cfg *config.Config) (broadcast.Policies, error) {
	pol := broadcast.DefaultPolicies()
	names := make([]string, 0, len(cfg.Broadcast.Kinds))
	for name := range cfg.Broadcast.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		kc := cfg.Broadcast.Kinds[name]
		k, err := broadcast.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("broadcast.kinds.%s: %w", name, err)
		}
		delay, err := config.ParseDurationField("broadcast.kinds."+name+".delay", kc.Delay)
		if err != nil {
			return nil, err
		}
		if err := pol.Apply(k, broadcast.Override{Min: kc.Min, Max: kc.Max, Delay: delay, OnSendError: kc.OnSendError}); err != nil {
			return nil, fmt.Errorf("broadcast.kinds.%s: %w", name, err)
		}
		if p := pol[k]; !p.Unbounded && p.Min > p.Max {
			return nil, fmt.Errorf("broadcast.kinds.%s: min (%d) > max (%d)", name, p.Min, p.Max)
		}
	}
	return pol, nil
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapCorpusFiles(cfg *config.Config) map[corpus.Category]string {
	return map[corpus.Category]string{
		corpus.Raid:     cfg.Corpus.RaidFile,
		corpus.Romantic: cfg.Corpus.RomanticFile,
	}
}

func mapLinks(cfg *config.Config) commands.Links {
	return commands.Links{
		Channel:       cfg.Links.Channel,
		Group:         cfg.Links.Group,
		Support:       cfg.Links.Support,
		OwnerUsername: cfg.Links.OwnerUsername,
	}
}

type timeouts struct {
	poll  time.Duration
	probe time.Duration
}

func mapTimeouts(cfg *config.Config) (timeouts, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return timeouts{}, err
	}
	probe, err := config.ParseDurationOrDefault("senders.probe_timeout", cfg.Senders.ProbeTimeout, 10*time.Second)
	if err != nil {
		return timeouts{}, err
	}
	return timeouts{poll: poll, probe: probe}, nil
}
