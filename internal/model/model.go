package model

import (
	"context"
	"time"
)

// Role represents a chat message role.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is a single entry of the coaching transcript. Entries are never edited or removed.
type ChatMessage struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	AnalysisID string    `json:"analysis_id"`
	Seq        int       `json:"seq"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Analysis is a stored, validated analysis result together with the file it came from.
type Analysis struct {
	ID        string          `json:"id"`
	FileHash  string          `json:"file_hash"`
	FileName  string          `json:"file_name"`
	MIMEType  string          `json:"mime_type"`
	Result    *AnalysisResult `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// BrowserSession is the server-side state of one browser session.
type BrowserSession struct {
	ID         string
	State      ViewState
	Authorized bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath        string // URL prefix for sub-path deployments (e.g. "/analiz")
	SecureCookies   bool   // Set Secure flag on cookies (disable for local dev)
	MaxUploadBytes  int64
	PasswordHash    []byte // bcrypt hash of the access password; empty disables the gate
	SessionTTL      time.Duration
	AnalysisTimeout time.Duration // 0 means no timeout
}

type sessionCtxKey struct{}

// ContextWithSession stores the browser session in the request context.
func ContextWithSession(ctx context.Context, s *BrowserSession) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext retrieves the browser session from context, or nil.
func SessionFromContext(ctx context.Context) *BrowserSession {
	s, _ := ctx.Value(sessionCtxKey{}).(*BrowserSession)
	return s
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
