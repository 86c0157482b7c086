package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// CreateSession creates a browser session in the idle state that expires after ttl.
func (s *Store) CreateSession(ttl time.Duration) (*model.BrowserSession, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	sess := &model.BrowserSession{
		ID:        token,
		State:     model.IdleState(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err = s.db.Exec(
		`INSERT INTO browser_sessions (id, status, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.State.Status, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession returns the browser session for the given token, or nil if not found/expired.
func (s *Store) GetSession(id string) (*model.BrowserSession, error) {
	var (
		sess       model.BrowserSession
		authorized int
	)
	err := s.db.QueryRow(
		`SELECT id, status, attempt, analysis_id, error_kind, error_detail, authorized, created_at, expires_at
		 FROM browser_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.State.Status, &sess.State.Attempt, &sess.State.AnalysisID, &sess.State.ErrKind, &sess.State.ErrDetail,
		&authorized, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteSession(id)
		return nil, nil
	}
	sess.Authorized = authorized != 0
	return &sess, nil
}

// UpdateSessionState applies fn to the current view state of a session and stores the result.
// The read and the write happen in one transaction, so concurrent transitions are serialized.
// An error from fn aborts the update and is returned unchanged.
func (s *Store) UpdateSessionState(id string, fn func(model.ViewState) (model.ViewState, error)) (model.ViewState, error) {
	return s.updateSessionState(id, fn, nil)
}

// SaveAnalysisWithState stores a for the session and applies fn in the same transaction.
// When fn fails nothing is written.
func (s *Store) SaveAnalysisWithState(id string, a *model.Analysis, fn func(model.ViewState) (model.ViewState, error)) (model.ViewState, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.updateSessionState(id, fn, func(tx *sql.Tx) error {
		return insertAnalysis(tx, id, a)
	})
}

func (s *Store) updateSessionState(id string, fn func(model.ViewState) (model.ViewState, error), write func(*sql.Tx) error) (model.ViewState, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.ViewState{}, err
	}
	defer tx.Rollback()

	var cur model.ViewState
	err = tx.QueryRow(
		`SELECT status, attempt, analysis_id, error_kind, error_detail FROM browser_sessions WHERE id = ?`, id,
	).Scan(&cur.Status, &cur.Attempt, &cur.AnalysisID, &cur.ErrKind, &cur.ErrDetail)
	if err == sql.ErrNoRows {
		return model.ViewState{}, ErrSessionNotFound
	}
	if err != nil {
		return model.ViewState{}, err
	}

	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	if write != nil {
		if err := write(tx); err != nil {
			return cur, err
		}
	}

	if _, err := tx.Exec(
		`UPDATE browser_sessions SET status = ?, attempt = ?, analysis_id = ?, error_kind = ?, error_detail = ? WHERE id = ?`,
		next.Status, next.Attempt, next.AnalysisID, next.ErrKind, next.ErrDetail, id,
	); err != nil {
		return cur, err
	}
	return next, tx.Commit()
}

// SetSessionAuthorized marks whether the session passed the access password gate.
func (s *Store) SetSessionAuthorized(id string, authorized bool) error {
	v := 0
	if authorized {
		v = 1
	}
	_, err := s.db.Exec(`UPDATE browser_sessions SET authorized = ? WHERE id = ?`, v, id)
	return err
}

// DeleteSession removes a session together with its analyses and transcripts.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM chat_messages WHERE session_id = ?`,
		`DELETE FROM analyses WHERE session_id = ?`,
		`DELETE FROM browser_sessions WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CleanupExpiredSessions removes all expired sessions and their data.
// It returns the number of sessions removed.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	expired := `SELECT id FROM browser_sessions WHERE expires_at < ?`
	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id IN (`+expired+`)`, now); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM analyses WHERE session_id IN (`+expired+`)`, now); err != nil {
		return 0, err
	}
	res, err := tx.Exec(`DELETE FROM browser_sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
