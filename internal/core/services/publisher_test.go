package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// TestPublisher_Publish verifies Publish behavior.
func TestPublisher_Publish(t *testing.T) {
	tests := []struct {
		name      string
		loggedIn  bool
		tracks    []domain.Track
		backend   *mockBackend
		wantErr   error
		wantCalls int
	}{
		{
			name:      "Happy Path",
			loggedIn:  true,
			tracks:    threeTracks(),
			backend:   &mockBackend{location: domain.PlaylistLocation{URL: "https://open.example.com/playlist/1"}},
			wantCalls: 1,
		},
		{
			name:     "Nothing to publish",
			loggedIn: true,
			tracks:   nil,
			backend:  &mockBackend{},
			wantErr:  domain.ErrNothingToPublish,
		},
		{
			name:     "Track without uri",
			loggedIn: true,
			tracks:   []domain.Track{{URI: "spotify:track:1"}, {Name: "no uri"}},
			backend:  &mockBackend{},
			wantErr:  domain.ErrPublish,
		},
		{
			name:     "Not logged in",
			loggedIn: false,
			tracks:   threeTracks(),
			backend:  &mockBackend{},
			wantErr:  domain.ErrNotAuthenticated,
		},
		{
			name:      "Backend failure",
			loggedIn:  true,
			tracks:    threeTracks(),
			backend:   &mockBackend{playlistErr: ports.ErrBackendUnavailable},
			wantErr:   ports.ErrBackendUnavailable,
			wantCalls: 1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.backend)
			f.login()
			seq := f.sess.BeginFetch()
			f.sess.CompleteFetch(seq, tc.tracks)
			if !tc.loggedIn {
				f.sess.SetAuth(domain.AuthSession{State: domain.AuthUnauthenticated})
			}
			f.sess.SetActivity(domain.ActivityRunning)

			loc, err := f.pub.Publish(context.Background(), f.sess)
			if got := len(f.backend.playlists); got != tc.wantCalls {
				t.Fatalf("expected %d backend calls, got %d", tc.wantCalls, got)
			}

			if tc.wantErr != nil {
				if !errors.Is(err, domain.ErrPublish) {
					t.Fatalf("expected ErrPublish, got %v", err)
				}
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v in chain, got %v", tc.wantErr, err)
				}
				if f.sess.Err() != domain.MsgPublishFailed {
					t.Fatalf("expected publish failure message, got %q", f.sess.Err())
				}
				if len(f.store.pubs) != 0 {
					t.Fatalf("failed publish must not be recorded")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if loc.URL != tc.backend.location.URL {
				t.Fatalf("url: got %q, want %q", loc.URL, tc.backend.location.URL)
			}
			call := f.backend.playlists[0]
			if call.name != "My Running Playlist" {
				t.Fatalf("name: got %q", call.name)
			}
			wantURIs := []string{"spotify:track:c", "spotify:track:a", "spotify:track:b"}
			if !reflect.DeepEqual(call.uris, wantURIs) {
				t.Fatalf("uris must follow session order: got %v, want %v", call.uris, wantURIs)
			}
			if len(f.store.pubs) != 1 || f.store.pubs[0].TrackCount != 3 || f.store.pubs[0].SessionID != f.sess.ID() {
				t.Fatalf("unexpected publication history: %+v", f.store.pubs)
			}
		})
	}
}

func TestPublisher_RefusedWhileLoading(t *testing.T) {
	f := newFixture(t, &mockBackend{
		tracks:   threeTracks(),
		location: domain.PlaylistLocation{URL: "https://open.example.com/playlist/1"},
	})
	f.login()

	var pubErr error
	var mid domain.SessionSnapshot
	f.backend.recHook = func() {
		_, pubErr = f.pub.Publish(context.Background(), f.sess)
		mid = f.sess.Snapshot()
	}

	if _, err := f.orch.FetchRecommendations(context.Background(), f.sess); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if !errors.Is(pubErr, domain.ErrFetchInProgress) {
		t.Fatalf("expected ErrFetchInProgress, got %v", pubErr)
	}
	if !mid.Loading || mid.Error != "" {
		t.Fatalf("loading session must carry no error, got loading=%v error=%q", mid.Loading, mid.Error)
	}
	if n := len(f.backend.playlists); n != 0 {
		t.Fatalf("no playlist may be created mid-fetch, got %d", n)
	}

	end := f.sess.Snapshot()
	if end.Error != "" || len(end.Recommendations) != 3 {
		t.Fatalf("completed fetch: error=%q tracks=%d", end.Error, len(end.Recommendations))
	}
}

func TestPublisher_RecordFailureDoesNotFailPublish(t *testing.T) {
	f := newFixture(t, &mockBackend{location: domain.PlaylistLocation{URL: "https://open.example.com/playlist/2"}})
	f.login()
	f.store.pubErr = errors.New("readonly database")

	loc, err := f.pub.CreatePlaylist(context.Background(), f.sess, "My Walking Playlist", []string{"spotify:track:1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.URL == "" {
		t.Fatalf("expected location")
	}
}

func TestPublisher_UnauthorizedInvalidatesSession(t *testing.T) {
	f := newFixture(t, &mockBackend{playlistErr: &ports.StatusError{Op: "create_playlist", StatusCode: 403}})
	f.login()

	_, err := f.pub.CreatePlaylist(context.Background(), f.sess, "My Sitting Playlist", []string{"u"})
	if !errors.Is(err, domain.ErrPublish) || !errors.Is(err, ports.ErrBackendUnauthorized) {
		t.Fatalf("expected ErrPublish wrapping ErrBackendUnauthorized, got %v", err)
	}
	if f.sess.Auth().Authorized() {
		t.Fatalf("expected auth to be invalidated")
	}
}

func TestPublisher_History(t *testing.T) {
	f := newFixture(t, &mockBackend{location: domain.PlaylistLocation{URL: "https://open.example.com/playlist/3"}})
	f.login()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.pub.CreatePlaylist(ctx, f.sess, "My Driving Playlist", []string{"u"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	got, err := f.pub.History(ctx, f.sess.ID(), 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(got))
	}

	none := NewPublisher(f.backend, f.auth, nil, nil)
	got, err = none.History(ctx, f.sess.ID(), 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty history without a repository, got %v, %v", got, err)
	}
}
