// Package access keeps the owner and the sudo list. Changes live in memory
// only and reset on restart.
package access

import (
	"errors"
	"sort"
	"sync"
)

type Level int

const (
	Everyone Level = iota
	Sudo
	Owner
)

func (l Level) String() string {
	switch l {
	case Owner:
		return "owner"
	case Sudo:
		return "sudo"
	}
	return "everyone"
}

var (
	ErrAlreadySudo = errors.New("user is already a sudo user")
	ErrNotSudo     = errors.New("user is not a sudo user")
	ErrIsOwner     = errors.New("the owner cannot be changed")
	ErrBadUserID   = errors.New("invalid user id")
)

type List struct {
	owner int64

	mu   sync.RWMutex
	sudo map[int64]struct{}
}

func New(owner int64, sudo []int64) *List {
	l := &List{owner: owner, sudo: map[int64]struct{}{}}
	for _, id := range sudo {
		if id != 0 && id != owner {
			l.sudo[id] = struct{}{}
		}
	}
	return l
}

func (l *List) Owner() int64 { return l.owner }

// LevelOf returns the highest level userID holds.
func (l *List) LevelOf(userID int64) Level {
	if userID != 0 && userID == l.owner {
		return Owner
	}
	l.mu.RLock()
	_, ok := l.sudo[userID]
	l.mu.RUnlock()
	if ok {
		return Sudo
	}
	return Everyone
}

func (l *List) Allowed(userID int64, need Level) bool {
	return l.LevelOf(userID) >= need
}

func (l *List) Add(userID int64) error {
	if userID <= 0 {
		return ErrBadUserID
	}
	if userID == l.owner {
		return ErrIsOwner
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sudo[userID]; ok {
		return ErrAlreadySudo
	}
	l.sudo[userID] = struct{}{}
	return nil
}

func (l *List) Remove(userID int64) error {
	if userID == l.owner {
		return ErrIsOwner
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sudo[userID]; !ok {
		return ErrNotSudo
	}
	delete(l.sudo, userID)
	return nil
}

// SudoUsers returns the sudo IDs in ascending order.
func (l *List) SudoUsers() []int64 {
	l.mu.RLock()
	out := make([]int64, 0, len(l.sudo))
	for id := range l.sudo {
		out = append(out, id)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
