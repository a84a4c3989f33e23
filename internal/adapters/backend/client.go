package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	// CookieTokenType marks a credential that is the backend's own session cookie.
	CookieTokenType = "cookie"
	// DefaultSessionCookie is the cookie name the backend uses for its session.
	DefaultSessionCookie = "session"

	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Client is an HTTP client for the recommendation backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookieName string
	log        *zap.Logger
}

// compile-time interface assertion
var _ ports.RecommendationBackend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSessionCookie overrides the name of the backend's session cookie.
func WithSessionCookie(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// NewClient constructs a new backend client.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: DefaultSessionCookie,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("backend")
	return c
}

// LoginURL asks the backend where the user must go to authorize.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	var out loginResponse
	if err := c.doJSON(ctx, domain.Credential{}, "login", http.MethodGet, "/login", nil, nil, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", fmt.Errorf("backend adapter: login: %w: missing url", ports.ErrMalformedResponse)
	}
	return out.URL, nil
}

// Ping reports whether the backend answers. The backend has no health
// endpoint, so the unauthenticated login lookup stands in for one.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.LoginURL(ctx)
	return err
}

// ExchangeCode completes the authorization handshake. The backend either
// returns a token in the body or tracks the user with its session cookie,
// in which case the cookie becomes the credential.
func (c *Client) ExchangeCode(ctx context.Context, code string) (domain.Credential, error) {
	q := url.Values{}
	q.Set("code", code)

	resp, body, err := c.do(ctx, domain.Credential{}, "callback", http.MethodGet, "/callback", q, nil)
	if err != nil {
		return domain.Credential{}, err
	}

	var tok callbackResponse
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &tok) == nil && tok.AccessToken != "" {
		cred := domain.Credential{Token: tok.AccessToken, TokenType: tok.TokenType}
		if tok.ExpiresIn > 0 {
			cred.Expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
		}
		return cred, nil
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName && ck.Value != "" {
			cred := domain.Credential{Token: ck.Value, TokenType: CookieTokenType}
			if !ck.Expires.IsZero() {
				cred.Expiry = ck.Expires.UTC()
			}
			return cred, nil
		}
	}

	// Nothing to carry: the backend keeps the login on its side.
	return domain.Credential{}, nil
}

// Recommendations fetches tracks for a pre-classified activity.
func (c *Client) Recommendations(ctx context.Context, cred domain.Credential, activity domain.ActivityCategory, prefs domain.Preferences) ([]domain.Track, error) {
	q := url.Values{}
	q.Set("activity", activity.String())
	q.Set("include_bollywood", strconv.FormatBool(prefs.IncludeRegional))

	var out recommendationsResponse
	if err := c.doJSON(ctx, cred, "recommendations", http.MethodGet, "/recommendations", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Recommendations == nil {
		return nil, fmt.Errorf("backend adapter: recommendations: %w: missing recommendations", ports.ErrMalformedResponse)
	}
	return mapTracks(*out.Recommendations), nil
}

// ActivityRecommendations sends a raw heart rate and returns the backend's
// classification together with its songs.
func (c *Client) ActivityRecommendations(ctx context.Context, cred domain.Credential, heartRate float64) (domain.ActivityReport, error) {
	var out activityResponse
	if err := c.doJSON(ctx, cred, "activity", http.MethodPost, "/activity", nil, activityRequest{HeartRate: heartRate}, &out); err != nil {
		return domain.ActivityReport{}, err
	}
	if out.Songs == nil {
		return domain.ActivityReport{}, fmt.Errorf("backend adapter: activity: %w: missing songs", ports.ErrMalformedResponse)
	}

	activity, err := domain.ParseActivity(out.Activity)
	if err != nil {
		c.log.Warn("unrecognised activity label", zap.String("label", out.Activity))
	}
	return domain.ActivityReport{Activity: activity, Tracks: mapTracks(*out.Songs)}, nil
}

// CreatePlaylist creates a playlist from the given track URIs, in order.
func (c *Client) CreatePlaylist(ctx context.Context, cred domain.Credential, name string, trackURIs []string) (domain.PlaylistLocation, error) {
	in := createPlaylistRequest{PlaylistName: name, TrackURIs: trackURIs}

	var out createPlaylistResponse
	if err := c.doJSON(ctx, cred, "create_playlist", http.MethodPost, "/create_playlist", nil, in, &out); err != nil {
		return domain.PlaylistLocation{}, err
	}
	u, err := url.Parse(strings.TrimSpace(out.URL))
	if err != nil || !u.IsAbs() {
		return domain.PlaylistLocation{}, fmt.Errorf("backend adapter: create_playlist: %w: bad url %q", ports.ErrMalformedResponse, out.URL)
	}
	return domain.PlaylistLocation{URL: u.String()}, nil
}

// doJSON performs a request and decodes a JSON body into out.
func (c *Client) doJSON(ctx context.Context, cred domain.Credential, op, method, path string, q url.Values, in, out any) error {
	_, body, err := c.do(ctx, cred, op, method, path, q, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("backend adapter: %s: %w: %w", op, ports.ErrMalformedResponse, err)
	}
	return nil
}

// do sends one request. There is no retry: a failure is final for the
// user action that caused it.
func (c *Client) do(ctx context.Context, cred domain.Credential, op, method, path string, q url.Values, in any) (*http.Response, []byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, nil, fmt.Errorf("backend adapter: %s: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("backend adapter: %s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)

	start := time.Now()
	resp, err := c.clientFor(req, cred).Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.String("request_id", reqID), zap.Error(err))
		return nil, nil, fmt.Errorf("backend adapter: %s: %w: %w", op, ports.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("backend adapter: %s: %w: %w", op, ports.ErrBackendUnavailable, err)
	}

	c.log.Debug("request completed",
		zap.String("op", op),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &ports.StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return resp, body, nil
}

// clientFor attaches the credential. Cookie credentials ride on the request;
// bearer tokens go through an oauth2 transport wrapped around ours.
func (c *Client) clientFor(req *http.Request, cred domain.Credential) *http.Client {
	if cred.Token == "" {
		return c.httpClient
	}
	if strings.EqualFold(cred.TokenType, CookieTokenType) {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: cred.Token})
		return c.httpClient
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.Token,
		TokenType:   cred.TokenType,
		Expiry:      cred.Expiry,
	})
	hc := *c.httpClient
	hc.Transport = &oauth2.Transport{Source: src, Base: c.httpClient.Transport}
	return &hc
}
