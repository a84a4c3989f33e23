package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// --- Mocks ---

// recCall captures the arguments of one Recommendations call.
type recCall struct {
	cred     domain.Credential
	activity domain.ActivityCategory
	prefs    domain.Preferences
}

// mockBackend is a scriptable RecommendationBackend.
type mockBackend struct {
	mu sync.Mutex

	loginURL string
	loginErr error

	cred        domain.Credential
	exchangeErr error
	exchanged   []string

	tracks  []domain.Track
	recErr  error
	recHook func() // runs inside Recommendations, before it returns
	recs    []recCall

	report       domain.ActivityReport
	activityErr  error
	heartRates   []float64
	activityHook func()

	location    domain.PlaylistLocation
	playlistErr error
	playlists   []createCall
}

type createCall struct {
	cred domain.Credential
	name string
	uris []string
}

var _ ports.RecommendationBackend = (*mockBackend)(nil)

func (m *mockBackend) LoginURL(ctx context.Context) (string, error) {
	if m.loginErr != nil {
		return "", m.loginErr
	}
	return m.loginURL, nil
}

func (m *mockBackend) ExchangeCode(ctx context.Context, code string) (domain.Credential, error) {
	m.mu.Lock()
	m.exchanged = append(m.exchanged, code)
	m.mu.Unlock()
	if m.exchangeErr != nil {
		return domain.Credential{}, m.exchangeErr
	}
	return m.cred, nil
}

func (m *mockBackend) Recommendations(ctx context.Context, cred domain.Credential, activity domain.ActivityCategory, prefs domain.Preferences) ([]domain.Track, error) {
	m.mu.Lock()
	m.recs = append(m.recs, recCall{cred: cred, activity: activity, prefs: prefs})
	hook := m.recHook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if m.recErr != nil {
		return nil, m.recErr
	}
	return m.tracks, nil
}

func (m *mockBackend) ActivityRecommendations(ctx context.Context, cred domain.Credential, heartRate float64) (domain.ActivityReport, error) {
	m.mu.Lock()
	m.heartRates = append(m.heartRates, heartRate)
	hook := m.activityHook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	if m.activityErr != nil {
		return domain.ActivityReport{}, m.activityErr
	}
	return m.report, nil
}

func (m *mockBackend) CreatePlaylist(ctx context.Context, cred domain.Credential, name string, trackURIs []string) (domain.PlaylistLocation, error) {
	m.mu.Lock()
	m.playlists = append(m.playlists, createCall{cred: cred, name: name, uris: append([]string(nil), trackURIs...)})
	m.mu.Unlock()
	if m.playlistErr != nil {
		return domain.PlaylistLocation{}, m.playlistErr
	}
	return m.location, nil
}

// mockStore is an in-memory AuthStore and PublicationRepository.
type mockStore struct {
	mu sync.Mutex

	auth       map[string]domain.AuthSession
	codes      map[string]bool
	pubs       []domain.Publication
	saveErr    error
	pubErr     error
	consumeErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		auth:  map[string]domain.AuthSession{},
		codes: map[string]bool{},
	}
}

var (
	_ ports.AuthStore             = (*mockStore)(nil)
	_ ports.PublicationRepository = (*mockStore)(nil)
)

func (m *mockStore) LoadAuth(ctx context.Context, sessionID string) (domain.AuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auth[sessionID]
	if !ok {
		return domain.AuthSession{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *mockStore) SaveAuth(ctx context.Context, sessionID string, auth domain.AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.auth[sessionID] = auth
	return nil
}

func (m *mockStore) DeleteAuth(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.auth, sessionID)
	return nil
}

func (m *mockStore) ConsumeCode(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumeErr != nil {
		return m.consumeErr
	}
	if m.codes[code] {
		return domain.ErrCodeConsumed
	}
	m.codes[code] = true
	return nil
}

func (m *mockStore) SavePublication(ctx context.Context, p domain.Publication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pubErr != nil {
		return m.pubErr
	}
	m.pubs = append(m.pubs, p)
	return nil
}

func (m *mockStore) ListPublications(ctx context.Context, sessionID string, limit int) ([]domain.Publication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Publication{}
	for _, p := range m.pubs {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockSensor is a scriptable HeartRateSensor.
type mockSensor struct {
	granted bool
	authErr error
	sample  domain.BiometricSample
	err     error
	queries int
}

var _ ports.HeartRateSensor = (*mockSensor)(nil)

func (m *mockSensor) RequestAuthorization(ctx context.Context) (bool, error) {
	return m.granted, m.authErr
}

func (m *mockSensor) LatestHeartRate(ctx context.Context) (domain.BiometricSample, error) {
	m.queries++
	if m.err != nil {
		return domain.BiometricSample{}, m.err
	}
	return m.sample, nil
}

// --- Helpers ---

type fixture struct {
	backend *mockBackend
	store   *mockStore
	auth    *AuthCoordinator
	orch    *Orchestrator
	pub     *Publisher
	sess    *domain.Session
}

func newFixture(t *testing.T, backend *mockBackend) *fixture {
	t.Helper()
	if backend == nil {
		backend = &mockBackend{}
	}
	log := zaptest.NewLogger(t)
	store := newMockStore()
	auth := NewAuthCoordinator(backend, store, log)
	sess, err := domain.NewSession("sess-test")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return &fixture{
		backend: backend,
		store:   store,
		auth:    auth,
		orch:    NewOrchestrator(backend, auth, log),
		pub:     NewPublisher(backend, auth, store, log),
		sess:    sess,
	}
}

// login puts the fixture's session straight into the authenticated state.
func (f *fixture) login() {
	f.sess.SetAuth(domain.AuthSession{
		State:           domain.AuthAuthenticated,
		Credential:      domain.Credential{Token: "tok", TokenType: "Bearer"},
		AuthenticatedAt: time.Now(),
	})
}

func threeTracks() []domain.Track {
	return []domain.Track{
		{URI: "spotify:track:c", Name: "Chaiyya Chaiyya", Artist: "Sukhwinder Singh"},
		{URI: "spotify:track:a", Name: "Walking on Sunshine", Artist: "Katrina and the Waves"},
		{URI: "spotify:track:b", Name: "Kun Faya Kun", Artist: "A. R. Rahman"},
	}
}
