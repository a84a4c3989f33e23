// Package redis provides a Redis-backed implementation of the storage ports.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	defaultPrefix  = "cadence"
	defaultCodeTTL = 24 * time.Hour
	// maxPublications bounds each session's history list.
	maxPublications = 200
)

// Options configures the connection made by Open.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// CodeTTL is how long a consumed code is remembered. Providers expire
	// codes well within the default.
	CodeTTL time.Duration
}

// Store implements ports.Store on Redis.
type Store struct {
	client  *goredis.Client
	prefix  string
	codeTTL time.Duration
}

var _ ports.Store = (*Store)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewStore(client, opts.Prefix, opts.CodeTTL), nil
}

// NewStore wraps an existing client. The store takes ownership of it.
func NewStore(client *goredis.Client, prefix string, codeTTL time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	return &Store{client: client, prefix: prefix, codeTTL: codeTTL}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) authKey(sessionID string) string {
	return fmt.Sprintf("%s:auth:%s", s.prefix, sessionID)
}

func (s *Store) codeKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return fmt.Sprintf("%s:code:%s", s.prefix, hex.EncodeToString(sum[:]))
}

func (s *Store) publicationsKey(sessionID string) string {
	return fmt.Sprintf("%s:publications:%s", s.prefix, sessionID)
}

func (s *Store) LoadAuth(ctx context.Context, sessionID string) (domain.AuthSession, error) {
	raw, err := s.client.Get(ctx, s.authKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.AuthSession{}, domain.ErrNotFound
		}
		return domain.AuthSession{}, fmt.Errorf("failed to load auth session: %w", err)
	}
	var auth domain.AuthSession
	if err := json.Unmarshal(raw, &auth); err != nil {
		return domain.AuthSession{}, fmt.Errorf("failed to decode auth session: %w", err)
	}
	return auth, nil
}

// SaveAuth stores the session. A credential with an expiry is kept only
// until it lapses.
func (s *Store) SaveAuth(ctx context.Context, sessionID string, auth domain.AuthSession) error {
	raw, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to encode auth session: %w", err)
	}
	var ttl time.Duration
	if !auth.Credential.Expiry.IsZero() {
		ttl = time.Until(auth.Credential.Expiry)
		if ttl <= 0 {
			return s.DeleteAuth(ctx, sessionID)
		}
	}
	if err := s.client.Set(ctx, s.authKey(sessionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save auth session: %w", err)
	}
	return nil
}

func (s *Store) DeleteAuth(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.authKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// ConsumeCode remembers the code's digest with SETNX, so concurrent
// callbacks with the same code cannot both win.
func (s *Store) ConsumeCode(ctx context.Context, code string) error {
	ok, err := s.client.SetNX(ctx, s.codeKey(code), time.Now().UTC().Format(time.RFC3339), s.codeTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to record code: %w", err)
	}
	if !ok {
		return domain.ErrCodeConsumed
	}
	return nil
}

func (s *Store) SavePublication(ctx context.Context, p domain.Publication) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode publication: %w", err)
	}
	key := s.publicationsKey(p.SessionID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, maxPublications-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save publication %s: %w", p.ID, err)
	}
	return nil
}

// ListPublications returns newest first. A non-positive limit returns all.
func (s *Store) ListPublications(ctx context.Context, sessionID string, limit int) ([]domain.Publication, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	items, err := s.client.LRange(ctx, s.publicationsKey(sessionID), 0, stop).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}

	out := make([]domain.Publication, 0, len(items))
	for _, item := range items {
		var p domain.Publication
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			return nil, fmt.Errorf("failed to decode publication: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
