package broadcast

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAlreadyActive     = errors.New("a job is already running in this chat")
	ErrRejected          = errors.New("too many jobs running")
	ErrNotActive         = errors.New("no active job in this chat")
	ErrNoAvailableSender = errors.New("no available bots at the moment")
	ErrClosed            = errors.New("broadcast service is shutting down")
)
