package telegram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wellness-meal-planner/internal/capture"
)

// DefaultSessionTTL is how long a half-filled wizard survives between messages.
const DefaultSessionTTL = 24 * time.Hour

// Conversation states. While capturing, the bot may be waiting for a
// free-text answer for one field of step 3.
const (
	StateCapture        = "capture"
	StateAwaitAllergies = "await_allergies"
	StateAwaitFavorites = "await_favorites"
	StateAwaitDislikes  = "await_dislikes"
)

// Session is an in-progress capture conversation for one Telegram user.
type Session struct {
	UserID    string
	ChatID    int64
	State     string
	Wizard    *capture.Wizard
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// SessionRepository persists capture conversations in bot_sessions.
type SessionRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(db *sql.DB, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{db: db, ttl: ttl, now: time.Now}
}

// Save writes the session, replacing any earlier one for the same user,
// and pushes its expiry forward.
func (sr *SessionRepository) Save(ctx context.Context, s *Session) error {
	data, err := capture.MarshalSnapshot(s.Wizard)
	if err != nil {
		return err
	}
	now := sr.now().UTC().Truncate(time.Second)
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(sr.ttl)
	if s.State == "" {
		s.State = StateCapture
	}

	_, err = sr.db.ExecContext(ctx, `
		INSERT INTO bot_sessions (user_id, chat_id, state, context_data, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			state = excluded.state,
			context_data = excluded.context_data,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		s.UserID, s.ChatID, s.State, data,
		s.ExpiresAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save bot session: %w", err)
	}
	return nil
}

// GetActive returns the user's unexpired session, or nil.
func (sr *SessionRepository) GetActive(ctx context.Context, userID string) (*Session, error) {
	var (
		s                    Session
		data                 string
		expiresAt, updatedAt string
	)
	err := sr.db.QueryRowContext(ctx, `
		SELECT user_id, chat_id, state, context_data, expires_at, updated_at
		FROM bot_sessions WHERE user_id = ?`, userID,
	).Scan(&s.UserID, &s.ChatID, &s.State, &data, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bot session: %w", err)
	}

	if s.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse session expiry: %w", err)
	}
	if !s.ExpiresAt.After(sr.now()) {
		return nil, nil
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse session update time: %w", err)
	}
	if s.Wizard, err = capture.UnmarshalSnapshot(data); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes the user's session.
func (sr *SessionRepository) Delete(ctx context.Context, userID string) error {
	if _, err := sr.db.ExecContext(ctx, `DELETE FROM bot_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete bot session: %w", err)
	}
	return nil
}

// CleanupExpired removes every expired session.
func (sr *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := sr.db.ExecContext(ctx, `DELETE FROM bot_sessions WHERE expires_at <= ?`,
		sr.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up bot sessions: %w", err)
	}
	return res.RowsAffected()
}
