package broadcast

import (
	"fmt"
	"strings"
	"time"

	"blastbot/internal/corpus"
)

// Kind names a job flavour. The string value doubles as the chat command.
type Kind string

const (
	Spam         Kind = "spam"
	BigSpam      Kind = "bspam"
	Unbounded    Kind = "uspam"
	Raid         Kind = "raid"
	RomanticRaid Kind = "sraid"
)

var allKinds = []Kind{Spam, BigSpam, Unbounded, Raid, RomanticRaid}

func Kinds() []Kind { return append([]Kind(nil), allKinds...) }

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range allKinds {
		if v == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown job kind %q", ErrInvalidArgument, s)
}

// ErrorPolicy decides what a job does after a failed send.
type ErrorPolicy int

const (
	Continue ErrorPolicy = iota
	Abort
)

func (p ErrorPolicy) String() string {
	if p == Abort {
		return "abort"
	}
	return "continue"
}

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continue":
		return Continue, nil
	case "abort":
		return Abort, nil
	}
	return Continue, fmt.Errorf("%w: unknown send error policy %q", ErrInvalidArgument, s)
}

// Policy holds the per-kind constants. Count bounds are inclusive and ignored
// for unbounded kinds.
type Policy struct {
	Min, Max    int
	Unbounded   bool
	Delay       time.Duration
	OnSendError ErrorPolicy

	// Templated kinds draw text from the corpus and need a target.
	Templated bool
	Category  corpus.Category
}

type Policies map[Kind]Policy

// DefaultPolicies returns a fresh copy of the built-in table.
func DefaultPolicies() Policies {
	return Policies{
		Spam:         {Min: 1, Max: 999, Delay: 300 * time.Millisecond, OnSendError: Abort},
		BigSpam:      {Min: 1, Max: 999999, Delay: 100 * time.Millisecond, OnSendError: Continue},
		Unbounded:    {Unbounded: true, Delay: 500 * time.Millisecond, OnSendError: Continue},
		Raid:         {Min: 1, Max: 100, Delay: 500 * time.Millisecond, OnSendError: Continue, Templated: true, Category: corpus.Raid},
		RomanticRaid: {Min: 1, Max: 100, Delay: 500 * time.Millisecond, OnSendError: Continue, Templated: true, Category: corpus.Romantic},
	}
}

// Override adjusts one kind. Zero values keep the current setting.
type Override struct {
	Min, Max    int
	Delay       time.Duration
	OnSendError string
}

func (p Policies) Apply(k Kind, o Override) error {
	cur, ok := p[k]
	if !ok {
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidArgument, k)
	}
	if o.Min > 0 {
		cur.Min = o.Min
	}
	if o.Max > 0 {
		cur.Max = o.Max
	}
	if o.Delay > 0 {
		cur.Delay = o.Delay
	}
	if o.OnSendError != "" {
		pol, err := ParseErrorPolicy(o.OnSendError)
		if err != nil {
			return err
		}
		cur.OnSendError = pol
	}
	if !cur.Unbounded && cur.Min > cur.Max {
		return fmt.Errorf("%w: %s min %d > max %d", ErrInvalidArgument, k, cur.Min, cur.Max)
	}
	p[k] = cur
	return nil
}
