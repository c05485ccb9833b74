// Package chat keeps the append-only conversation transcript for the active
// session. Turns are never edited or removed; a failed request still appends
// an assistant turn so the exchange stays visible in the transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/session"
)

// Role distinguishes who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one transcript entry. Sources are citations into the model and are
// stored verbatim for the presentation layer to format.
type Turn struct {
	Role    Role
	Text    string
	Sources []api.Source
	At      time.Time
	IsError bool
}

// ErrAskInFlight is returned when a second ask starts before the first
// answer arrived. The conversation is serialized; callers disable input
// while a request is outstanding.
var ErrAskInFlight = errors.New("a question is already in flight")

// Log is the append-only conversation for one session at a time.
type Log struct {
	client   *api.Client
	sessions *session.Tracker
	logger   *slog.Logger

	mu       sync.Mutex
	turns    []Turn
	inFlight bool
}

// NewLog creates an empty Log.
func NewLog(client *api.Client, sessions *session.Tracker, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{client: client, sessions: sessions, logger: logger}
}

// Turns returns a copy of the transcript in append order.
func (l *Log) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Reset clears the transcript. Called when a new model upload begins.
func (l *Log) Reset() {
	l.mu.Lock()
	l.turns = nil
	l.mu.Unlock()
}

// Ask appends the user turn, sends the question, and appends exactly one
// assistant turn: the answer with its citations on success, or a turn whose
// text communicates the failure. The transcript grows by exactly two per
// call either way.
func (l *Log) Ask(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, common.ErrInvalidInput
	}
	h, ok := l.sessions.Current()
	if !ok {
		return Turn{}, common.ErrNoSession
	}

	l.mu.Lock()
	if l.inFlight {
		l.mu.Unlock()
		return Turn{}, ErrAskInFlight
	}
	l.inFlight = true
	l.turns = append(l.turns, Turn{Role: RoleUser, Text: text, At: time.Now()})
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inFlight = false
		l.mu.Unlock()
	}()

	answer, err := l.client.Chat(ctx, h.ID, text)

	// A late answer for a superseded session is not appended to the new
	// session's transcript; the user turn went down with the old transcript
	// when Reset ran.
	if l.sessions.Stale(h) {
		l.logger.Info("chat.stale_answer_dropped", "session_id", h.ID)
		return Turn{}, session.ErrSuperseded
	}

	var reply Turn
	if err != nil {
		l.logger.Error("chat.ask_failed", "session_id", h.ID, "error", err)
		reply = Turn{
			Role:    RoleAssistant,
			Text:    fmt.Sprintf("The question could not be answered: %v", err),
			At:      time.Now(),
			IsError: true,
		}
	} else {
		reply = Turn{
			Role:    RoleAssistant,
			Text:    answer.Answer,
			Sources: answer.Sources,
			At:      time.Now(),
		}
	}

	l.mu.Lock()
	l.turns = append(l.turns, reply)
	l.mu.Unlock()

	l.logger.Info("chat.turn_appended",
		"session_id", h.ID,
		"is_error", reply.IsError,
		"sources", len(reply.Sources),
	)
	return reply, nil
}
