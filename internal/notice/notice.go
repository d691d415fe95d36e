// Package notice keeps the short-lived status messages shown to the user
// after sync operations.
package notice

import (
	"sync"
	"time"
)

// Level is the severity of a notice.
type Level int

const (
	LevelSuccess Level = iota
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Display durations.
const (
	SuccessTTL = 3 * time.Second
	ErrorTTL   = 5 * time.Second
)

// TTL returns how long a notice of level l stays visible.
func (l Level) TTL() time.Duration {
	if l == LevelSuccess {
		return SuccessTTL
	}
	return ErrorTTL
}

// Notice is one message.
type Notice struct {
	Level   Level     `json:"-"`
	Kind    string    `json:"level"`
	Text    string    `json:"text"`
	Posted  time.Time `json:"posted"`
	Expires time.Time `json:"expires"`
}

// Board holds the latest notice per level. Posting replaces the previous
// notice of the same level.
type Board struct {
	mu      sync.Mutex
	now     func() time.Time
	current map[Level]Notice
}

// NewBoard returns an empty board on the wall clock.
func NewBoard() *Board {
	return NewBoardWithClock(time.Now)
}

// NewBoardWithClock returns an empty board reading time from now.
func NewBoardWithClock(now func() time.Time) *Board {
	return &Board{
		now:     now,
		current: make(map[Level]Notice),
	}
}

// Post shows text at level and returns the stored notice.
func (b *Board) Post(level Level, text string) Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	posted := b.now()
	n := Notice{
		Level:   level,
		Kind:    level.String(),
		Text:    text,
		Posted:  posted,
		Expires: posted.Add(level.TTL()),
	}
	b.current[level] = n
	return n
}

// Success posts a success notice.
func (b *Board) Success(text string) Notice { return b.Post(LevelSuccess, text) }

// Warning posts a warning notice.
func (b *Board) Warning(text string) Notice { return b.Post(LevelWarning, text) }

// Error posts an error notice.
func (b *Board) Error(text string) Notice { return b.Post(LevelError, text) }

// Active returns the unexpired notices, most severe first, and drops the
// expired ones.
func (b *Board) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var out []Notice
	for _, level := range []Level{LevelError, LevelWarning, LevelSuccess} {
		n, ok := b.current[level]
		if !ok {
			continue
		}
		if !now.Before(n.Expires) {
			delete(b.current, level)
			continue
		}
		out = append(out, n)
	}
	return out
}

// Clear removes every notice.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = make(map[Level]Notice)
}
