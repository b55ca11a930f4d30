package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blastbot/internal/sender"
	"blastbot/internal/transport/telegram"
	logx "blastbot/pkg/logx"
)

// dialFunc turns one token into a pool member.
type dialFunc func(ctx context.Context, token string) (sender.Member, error)

func telegramDialer(timeout time.Duration) dialFunc {
	return func(ctx context.Context, token string) (sender.Member, error) {
		c, err := telegram.Dial(ctx, token, timeout)
		if err != nil {
			return sender.Member{}, err
		}
		return sender.Member{Username: c.Username(), Client: c}, nil
	}
}

// dialSenders initialises every token concurrently and keeps the ones that
// work, in token order. Zero working tokens is fatal.
func dialSenders(ctx context.Context, tokens []string, dial dialFunc, log logx.Logger) ([]sender.Member, error) {
	type result struct {
		m   sender.Member
		err error
	}
	results := make([]result, len(tokens))

	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok string) {
			defer wg.Done()
			m, err := dial(ctx, tok)
			results[i] = result{m: m, err: err}
		}(i, tok)
	}
	wg.Wait()

	members := make([]sender.Member, 0, len(tokens))
	var errs []error
	for i, r := range results {
		if r.err != nil {
			log.Warn("bot init failed", logx.Int("token_index", i), logx.String("token", redact(tokens[i])), logx.Err(r.err))
			errs = append(errs, fmt.Errorf("token %d: %w", i, r.err))
			continue
		}
		log.Info("bot initialized", logx.Int("token_index", i), logx.String("username", r.m.Username))
		members = append(members, r.m)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no bot could be initialized: %w", errors.Join(errs...))
	}
	return members, nil
}

// redact keeps the bot id part of a token ("123456:abc..." -> "123456:***").
func redact(token string) string {
	for i := 0; i < len(token); i++ {
		if token[i] == ':' {
			return token[:i] + ":***"
		}
	}
	if len(token) > 4 {
		return token[:4] + "***"
	}
	return "***"
}
