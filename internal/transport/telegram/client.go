// Package telegram wraps telebot for the sender pool.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"blastbot/internal/sender"
)

// Client is one bot token used purely for outbound sends.
type Client struct {
	bot      *tele.Bot
	username string
}

// Dial verifies token with getMe and returns a send-only client.
func Dial(ctx context.Context, token string, timeout time.Duration) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		b   *tele.Bot
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := tele.NewBot(tele.Settings{
			Token:  token,
			Client: &http.Client{Timeout: timeout},
		})
		ch <- result{b, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, Classify(r.err)
		}
		c := &Client{bot: r.b}
		if r.b.Me != nil {
			c.username = r.b.Me.Username
		}
		return c, nil
	}
}

func (c *Client) Username() string { return c.username }

// SendText sends plain text. The call itself cannot be interrupted once
// started; ctx is checked before it.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return Classify(err)
}

// Probe calls getMe.
func (c *Client) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Raw("getMe", nil)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return Classify(err)
	}
}

// Classify maps Telegram API errors onto the sender error classes:
// flood control becomes RetryAfter, auth and permission failures become
// Fatal, everything else stays transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return sender.RetryAfter(err, time.Duration(flood.RetryAfter)*time.Second)
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return sender.Fatal(err)
		}
	}
	return err
}
