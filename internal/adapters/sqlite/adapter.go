// Package sqlite provides a SQLite-backed implementation of the storage ports.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Adapter implements the storage ports for SQLite
type Adapter struct {
	db *sql.DB
}

var _ ports.Store = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if storagePath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	// Auto-migrate on startup
	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) LoadAuth(ctx context.Context, sessionID string) (domain.AuthSession, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT state, token, token_type, expiry, pending_since, authenticated_at
		FROM auth_sessions WHERE session_id = ?
	`, sessionID)

	var (
		auth            domain.AuthSession
		state           string
		expiry          sql.NullTime
		pendingSince    sql.NullTime
		authenticatedAt sql.NullTime
	)
	if err := row.Scan(&state, &auth.Credential.Token, &auth.Credential.TokenType, &expiry, &pendingSince, &authenticatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AuthSession{}, domain.ErrNotFound
		}
		return domain.AuthSession{}, fmt.Errorf("failed to load auth session: %w", err)
	}
	auth.State = domain.AuthState(state)
	if expiry.Valid {
		auth.Credential.Expiry = expiry.Time.UTC()
	}
	if pendingSince.Valid {
		auth.PendingSince = pendingSince.Time.UTC()
	}
	if authenticatedAt.Valid {
		auth.AuthenticatedAt = authenticatedAt.Time.UTC()
	}
	return auth, nil
}

func (a *Adapter) SaveAuth(ctx context.Context, sessionID string, auth domain.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (session_id, state, token, token_type, expiry, pending_since, authenticated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			state=excluded.state,
			token=excluded.token,
			token_type=excluded.token_type,
			expiry=excluded.expiry,
			pending_since=excluded.pending_since,
			authenticated_at=excluded.authenticated_at,
			updated_at=excluded.updated_at;
	`
	if _, err := a.db.ExecContext(
		ctx,
		query,
		sessionID,
		string(auth.State),
		auth.Credential.Token,
		auth.Credential.TokenType,
		nullTime(auth.Credential.Expiry),
		nullTime(auth.PendingSince),
		nullTime(auth.AuthenticatedAt),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to save auth session: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteAuth(ctx context.Context, sessionID string) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete auth session: %w", err)
	}
	return nil
}

// ConsumeCode records the code's digest. The primary key makes the insert
// the single point of truth for "seen before", also across processes.
func (a *Adapter) ConsumeCode(ctx context.Context, code string) error {
	res, err := a.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO consumed_codes (digest, consumed_at) VALUES (?, ?)",
		codeDigest(code), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record code: %w", err)
	}
	if n == 0 {
		return domain.ErrCodeConsumed
	}
	return nil
}

func (a *Adapter) SavePublication(ctx context.Context, p domain.Publication) error {
	query := `
		INSERT INTO publications (id, session_id, name, url, track_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := a.db.ExecContext(ctx, query, p.ID, p.SessionID, p.Name, p.URL, p.TrackCount, p.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save publication %s: %w", p.ID, err)
	}
	return nil
}

// ListPublications returns a session's publications, newest first. A
// non-positive limit returns all of them.
func (a *Adapter) ListPublications(ctx context.Context, sessionID string, limit int) ([]domain.Publication, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, name, url, track_count, created_at
		FROM publications
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list publications: %w", err)
	}
	defer rows.Close()

	out := []domain.Publication{}
	for rows.Next() {
		var p domain.Publication
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.URL, &p.TrackCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan publication: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate publications: %w", err)
	}
	return out, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS auth_sessions (
		session_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		token TEXT NOT NULL DEFAULT '',
		token_type TEXT NOT NULL DEFAULT '',
		expiry DATETIME,
		pending_since DATETIME,
		authenticated_at DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS consumed_codes (
		digest TEXT PRIMARY KEY,
		consumed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS publications (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		track_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_publications_session ON publications(session_id, created_at);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}
	return nil
}

// codeDigest keeps raw authorization codes out of the database.
func codeDigest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
