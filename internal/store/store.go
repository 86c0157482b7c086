package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkkukul/Elif-Hoca/internal/model"

	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned by state updates for unknown sessions.
var ErrSessionNotFound = errors.New("session not found")

type Store struct {
	db *sql.DB
}

// New opens the database at dbPath. ":memory:" keeps everything in process memory.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: every :memory: connection is a separate database, and a single writer
	// serializes session state transitions.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS browser_sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'idle',
		attempt TEXT NOT NULL DEFAULT '',
		analysis_id TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		error_detail TEXT NOT NULL DEFAULT '',
		authorized INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES browser_sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_session ON analyses(session_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		analysis_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (session_id, analysis_id, seq),
		FOREIGN KEY (session_id) REFERENCES browser_sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAnalysis stores a validated analysis for a session. A missing ID is generated.
func (s *Store) SaveAnalysis(sessionID string, a *model.Analysis) error {
	return insertAnalysis(s.db, sessionID, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertAnalysis(db execer, sessionID string, a *model.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO analyses (id, session_id, file_hash, file_name, mime_type, result_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, sessionID, a.FileHash, a.FileName, a.MIMEType, string(payload), a.CreatedAt,
	)
	return err
}

// GetAnalysis returns an analysis by ID, or nil if not found.
func (s *Store) GetAnalysis(id string) (*model.Analysis, error) {
	var (
		a       model.Analysis
		payload string
	)
	err := s.db.QueryRow(
		`SELECT id, file_hash, file_name, mime_type, result_json, created_at FROM analyses WHERE id = ?`, id,
	).Scan(&a.ID, &a.FileHash, &a.FileName, &a.MIMEType, &payload, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode stored analysis %s: %w", id, err)
	}
	a.Result = &result
	return &a, nil
}

// AppendChatMessage appends msg to the transcript of its session and analysis, assigning
// ID, Seq and CreatedAt. Transcript rows are never updated.
func (s *Store) AppendChatMessage(msg *model.ChatMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = ? AND analysis_id = ?`,
		msg.SessionID, msg.AnalysisID,
	).Scan(&next); err != nil {
		return err
	}

	msg.ID = uuid.NewString()
	msg.Seq = next
	msg.CreatedAt = time.Now().UTC()

	if _, err := tx.Exec(
		`INSERT INTO chat_messages (id, session_id, analysis_id, seq, role, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.AnalysisID, msg.Seq, msg.Role, msg.Text, msg.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListChatMessages returns the transcript of an analysis in a session, oldest first.
func (s *Store) ListChatMessages(sessionID, analysisID string) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, analysis_id, seq, role, text, created_at
		 FROM chat_messages WHERE session_id = ? AND analysis_id = ? ORDER BY seq`,
		sessionID, analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.AnalysisID, &m.Seq, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AnalysisCount returns the number of stored analyses.
func (s *Store) AnalysisCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&count)
	return count, err
}
