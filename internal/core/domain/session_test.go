package domain

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("sess-1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func TestNewSession(t *testing.T) {
	if _, err := NewSession(""); err == nil {
		t.Fatalf("expected error for empty id")
	}

	s := newTestSession(t)
	snap := s.Snapshot()
	if snap.Activity != ActivityWalking {
		t.Fatalf("expected default activity walking, got %q", snap.Activity)
	}
	if !snap.Preferences.IncludeRegional {
		t.Fatalf("expected regional genres to be included by default")
	}
	if snap.AuthState != AuthUnauthenticated {
		t.Fatalf("expected unauthenticated, got %q", snap.AuthState)
	}
	if snap.Loading || snap.Error != "" || len(snap.Recommendations) != 0 {
		t.Fatalf("expected idle session, got %+v", snap)
	}
}

func TestSession_FetchTransitions(t *testing.T) {
	tracks := []Track{
		{URI: "spotify:track:1", Name: "One"},
		{URI: "spotify:track:2", Name: "Two"},
	}

	tests := []struct {
		name      string
		succeed   bool
		wantRecs  []Track
		wantError string
	}{
		{name: "success keeps backend order", succeed: true, wantRecs: tracks},
		{name: "failure leaves recommendations empty", succeed: false, wantRecs: []Track{}, wantError: MsgFetchFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(t)
			// seed a previous result and error so the reset is observable
			seq := s.BeginFetch()
			s.CompleteFetch(seq, []Track{{URI: "old"}})
			s.SetError("old error")

			seq = s.BeginFetch()
			mid := s.Snapshot()
			if !mid.Loading {
				t.Fatalf("expected loading after BeginFetch")
			}
			if mid.Error != "" {
				t.Fatalf("expected error cleared, got %q", mid.Error)
			}
			if len(mid.Recommendations) != 0 {
				t.Fatalf("expected recommendations cleared, got %d", len(mid.Recommendations))
			}

			var applied bool
			if tc.succeed {
				applied = s.CompleteFetch(seq, tracks)
			} else {
				applied = s.FailFetch(seq, MsgFetchFailed)
			}
			if !applied {
				t.Fatalf("expected latest fetch to be applied")
			}

			end := s.Snapshot()
			if end.Loading {
				t.Fatalf("expected loading cleared")
			}
			if end.Error != tc.wantError {
				t.Fatalf("error: got %q, want %q", end.Error, tc.wantError)
			}
			if !reflect.DeepEqual(end.Recommendations, tc.wantRecs) {
				t.Fatalf("recommendations: got %+v, want %+v", end.Recommendations, tc.wantRecs)
			}
		})
	}
}

func TestSession_StaleCompletionIsDiscarded(t *testing.T) {
	s := newTestSession(t)

	first := s.BeginFetch()
	second := s.BeginFetch()

	if s.CompleteFetch(first, []Track{{URI: "stale"}}) {
		t.Fatalf("stale completion must not apply")
	}
	if s.FailFetch(first, "stale failure") {
		t.Fatalf("stale failure must not apply")
	}
	if !s.Loading() {
		t.Fatalf("stale completion must not clear loading of the newer fetch")
	}

	if !s.CompleteFetch(second, []Track{{URI: "fresh"}}) {
		t.Fatalf("latest completion must apply")
	}
	recs := s.Recommendations()
	if len(recs) != 1 || recs[0].URI != "fresh" {
		t.Fatalf("unexpected recommendations: %+v", recs)
	}
}

func TestSession_ErrorIsNotRecordedWhileLoading(t *testing.T) {
	s := newTestSession(t)
	seq := s.BeginFetch()

	if s.SetError(MsgPublishFailed) {
		t.Fatalf("SetError must refuse a message while loading")
	}
	if snap := s.Snapshot(); !snap.Loading || snap.Error != "" {
		t.Fatalf("loading session must carry no error, got loading=%v error=%q", snap.Loading, snap.Error)
	}

	if !s.CompleteFetch(seq, []Track{{URI: "spotify:track:1"}}) {
		t.Fatalf("expected completion to apply")
	}
	if got := s.Err(); got != "" {
		t.Fatalf("completed fetch must show no error, got %q", got)
	}
	if !s.SetError(MsgPublishFailed) {
		t.Fatalf("SetError must record once loading has finished")
	}
}

func TestSession_CompleteActivityFetch(t *testing.T) {
	s := newTestSession(t)
	s.SetActivity(ActivitySitting)

	stale := s.BeginFetch()
	s.SetActivity(ActivityDriving)
	latest := s.BeginFetch()

	if s.CompleteActivityFetch(stale, []Track{{URI: "old"}}, ActivityRunning) {
		t.Fatalf("stale completion must not apply")
	}
	if got := s.Activity(); got != ActivityDriving {
		t.Fatalf("stale label overwrote the selection: got %q", got)
	}

	if !s.CompleteActivityFetch(latest, []Track{{URI: "new"}}, ActivityExercising) {
		t.Fatalf("latest completion must apply")
	}
	if got := s.Activity(); got != ActivityExercising {
		t.Fatalf("activity: got %q, want %q", got, ActivityExercising)
	}

	seq := s.BeginFetch()
	s.CompleteActivityFetch(seq, nil, "")
	if got := s.Activity(); got != ActivityExercising {
		t.Fatalf("empty label must keep the activity, got %q", got)
	}
}

func TestSession_CanPublish(t *testing.T) {
	tests := []struct {
		name   string
		tracks []Track
		auth   AuthState
		want   bool
	}{
		{name: "authorized with tracks", tracks: []Track{{URI: "u"}}, auth: AuthAuthenticated, want: true},
		{name: "authorized without tracks", tracks: nil, auth: AuthAuthenticated, want: false},
		{name: "tracks but pending", tracks: []Track{{URI: "u"}}, auth: AuthAuthorizationPending, want: false},
		{name: "tracks but failed", tracks: []Track{{URI: "u"}}, auth: AuthAuthorizationFailed, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(t)
			s.SetAuth(AuthSession{State: tc.auth})
			seq := s.BeginFetch()
			s.CompleteFetch(seq, tc.tracks)
			if got := s.CanPublish(); got != tc.want {
				t.Fatalf("CanPublish() = %v, want %v", got, tc.want)
			}
			if got := s.Snapshot().CanPublish; got != tc.want {
				t.Fatalf("Snapshot().CanPublish = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSession_RecommendationsAreCopies(t *testing.T) {
	s := newTestSession(t)
	in := []Track{{URI: "a"}}
	seq := s.BeginFetch()
	s.CompleteFetch(seq, in)

	in[0].URI = "mutated"
	out := s.Recommendations()
	out[0].URI = "also mutated"

	if got := s.Recommendations()[0].URI; got != "a" {
		t.Fatalf("session state leaked through slice aliasing: %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "fetch wraps cause", err: fmt.Errorf("%w: %w", ErrFetch, errors.New("status 401")), want: MsgFetchFailed},
		{name: "fetch wrapping not authenticated stays generic", err: fmt.Errorf("%w: %w", ErrFetch, ErrNotAuthenticated), want: MsgFetchFailed},
		{name: "publish", err: fmt.Errorf("%w: boom", ErrPublish), want: MsgPublishFailed},
		{name: "not authenticated", err: ErrNotAuthenticated, want: MsgNotAuthenticated},
		{name: "auth init", err: ErrAuthInit, want: MsgAuthInitFailed},
		{name: "callback", err: fmt.Errorf("%w: %w", ErrAuthCallback, ErrCodeConsumed), want: MsgCallbackFailed},
		{name: "sensor", err: ErrSensorAuthorizationDenied, want: MsgSensorFailed},
		{name: "fetch in progress", err: ErrFetchInProgress, want: MsgFetchInProgress},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := UserMessage(tc.err); got != tc.want {
				t.Fatalf("UserMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}
