package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/chat"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/session"
)

func TestAsk_AppendsTwoTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{
			"answer": "O modelo tem 12 paredes externas.",
			"sources": [{"guid": "2O2Fr$t4X7Zf8NOew3FLKc", "step_id": 42, "entity": "IfcWall", "path": "Project > Site > Building > Level 1"}]
		}`))
	}))
	defer srv.Close()

	sessions := session.NewTracker()
	sessions.Begin("s1")
	log := chat.NewLog(api.NewClient(srv.URL, nil, nil), sessions, nil)

	turn, err := log.Ask(context.Background(), "  quantas paredes externas?  ")
	require.NoError(t, err)
	require.Equal(t, chat.RoleAssistant, turn.Role)
	require.False(t, turn.IsError)
	require.Len(t, turn.Sources, 1)
	require.Equal(t, "IfcWall", turn.Sources[0].Entity)

	turns := log.Turns()
	require.Len(t, turns, 2)
	require.Equal(t, chat.RoleUser, turns[0].Role)
	require.Equal(t, "quantas paredes externas?", turns[0].Text)
	require.Equal(t, chat.RoleAssistant, turns[1].Role)
	require.Equal(t, "O modelo tem 12 paredes externas.", turns[1].Text)
}

func TestAsk_FailureStillAppendsTwoTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"LLM indisponível"}`))
	}))
	defer srv.Close()

	sessions := session.NewTracker()
	sessions.Begin("s1")
	log := chat.NewLog(api.NewClient(srv.URL, nil, nil), sessions, nil)

	turn, err := log.Ask(context.Background(), "pergunta um")
	require.NoError(t, err, "a failed request is reported inside the transcript, not as an error")
	require.True(t, turn.IsError)
	require.Contains(t, turn.Text, "could not be answered")

	// Transcript grows by exactly two per ask, success or failure.
	require.Equal(t, 2, log.Len())
	_, err = log.Ask(context.Background(), "pergunta dois")
	require.NoError(t, err)
	require.Equal(t, 4, log.Len())

	// Append order is user, assistant, user, assistant.
	turns := log.Turns()
	for i, turn := range turns {
		want := chat.RoleUser
		if i%2 == 1 {
			want = chat.RoleAssistant
		}
		require.Equal(t, want, turn.Role)
	}
}

func TestAsk_RejectsBlankQuestion(t *testing.T) {
	sessions := session.NewTracker()
	sessions.Begin("s1")
	log := chat.NewLog(api.NewClient("http://unused", nil, nil), sessions, nil)

	_, err := log.Ask(context.Background(), "   \t  ")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	require.Zero(t, log.Len())
}

func TestAsk_RequiresSession(t *testing.T) {
	log := chat.NewLog(api.NewClient("http://unused", nil, nil), session.NewTracker(), nil)
	_, err := log.Ask(context.Background(), "alguém?")
	require.ErrorIs(t, err, common.ErrNoSession)
	require.Zero(t, log.Len())
}

func TestAsk_SecondAskWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"answer":"ok","sources":[]}`))
	}))
	defer srv.Close()

	sessions := session.NewTracker()
	sessions.Begin("s1")
	log := chat.NewLog(api.NewClient(srv.URL, nil, nil), sessions, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := log.Ask(context.Background(), "primeira")
		firstDone <- err
	}()

	// Wait for the first ask to register its user turn, then try a second.
	require.Eventually(t, func() bool { return log.Len() == 1 }, time.Second, time.Millisecond)
	_, err := log.Ask(context.Background(), "segunda")
	require.ErrorIs(t, err, chat.ErrAskInFlight)

	close(release)
	require.NoError(t, <-firstDone)
	require.Equal(t, 2, log.Len())
}

func TestAsk_StaleAnswerDropped(t *testing.T) {
	sessions := session.NewTracker()
	sessions.Begin("s1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions.Begin("s2")
		_, _ = w.Write([]byte(`{"answer":"tarde demais","sources":[]}`))
	}))
	defer srv.Close()

	log := chat.NewLog(api.NewClient(srv.URL, nil, nil), sessions, nil)
	_, err := log.Ask(context.Background(), "pergunta")
	require.ErrorIs(t, err, session.ErrSuperseded)

	// The late answer is not appended; only the user turn from before the
	// supersession remains until Reset clears it.
	turns := log.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, chat.RoleUser, turns[0].Role)
}

func TestReset_ClearsTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"ok","sources":[]}`))
	}))
	defer srv.Close()

	sessions := session.NewTracker()
	sessions.Begin("s1")
	log := chat.NewLog(api.NewClient(srv.URL, nil, nil), sessions, nil)

	_, err := log.Ask(context.Background(), "pergunta")
	require.NoError(t, err)
	require.Equal(t, 2, log.Len())

	log.Reset()
	require.Zero(t, log.Len())
}

func TestTurns_ReturnsCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"ok","sources":[]}`))
	}))
	defer srv.Close()

	sessions := session.NewTracker()
	sessions.Begin("s1")
	log := chat.NewLog(api.NewClient(srv.URL, nil, nil), sessions, nil)
	_, err := log.Ask(context.Background(), "pergunta")
	require.NoError(t, err)

	turns := log.Turns()
	turns[0].Text = "mutated"
	require.Equal(t, "pergunta", log.Turns()[0].Text)
}
