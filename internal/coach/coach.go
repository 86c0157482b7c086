package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mkkukul/Elif-Hoca/internal/llm"
	"github.com/mkkukul/Elif-Hoca/internal/llm/prompts"
	"github.com/mkkukul/Elif-Hoca/internal/metrics"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Transcripts persists the append-only coaching transcript.
type Transcripts interface {
	AppendChatMessage(msg *model.ChatMessage) error
	ListChatMessages(sessionID, analysisID string) ([]model.ChatMessage, error)
}

// Service answers student questions about an analysis. Turns of one session are serialized.
type Service struct {
	provider llm.Provider // nil when no credential is configured
	store    Transcripts
	metrics  *metrics.Service
	locks    keyedMutex
}

// NewService creates a coach. provider and m may be nil.
func NewService(provider llm.Provider, store Transcripts, m *metrics.Service) *Service {
	return &Service{provider: provider, store: store, metrics: m}
}

// Seed starts the transcript of a fresh analysis with a single welcome message.
// It does nothing when the transcript already has entries.
func (s *Service) Seed(sessionID string, a *model.Analysis) ([]model.ChatMessage, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	msgs, err := s.store.ListChatMessages(sessionID, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}
	if len(msgs) > 0 {
		return msgs, nil
	}

	welcome, err := prompts.BuildWelcome(a.Result.StudentOrEmpty().FullName)
	if err != nil {
		return nil, fmt.Errorf("build welcome: %w", err)
	}
	msg := model.ChatMessage{SessionID: sessionID, AnalysisID: a.ID, Role: model.RoleModel, Text: welcome}
	if err := s.store.AppendChatMessage(&msg); err != nil {
		return nil, fmt.Errorf("append welcome: %w", err)
	}
	return []model.ChatMessage{msg}, nil
}

// Send records one exchange: the student's message and the model reply, or the canned apology
// when the model call fails. Blank input records nothing. The returned transcript includes the
// new exchange. An error is returned only when the transcript itself cannot be read or written.
func (s *Service) Send(ctx context.Context, sessionID string, a *model.Analysis, text string) ([]model.ChatMessage, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	history, err := s.store.ListChatMessages(sessionID, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}

	message := prompts.SanitizeMessage(text)
	if message == "" {
		return history, nil
	}

	reply, err := s.reply(ctx, a, history, message)
	if err != nil {
		slog.Warn("coach reply failed", "session", shortID(sessionID), "error", err)
		s.metrics.ObserveChat("error")
		reply = prompts.Apology
	} else {
		s.metrics.ObserveChat("ok")
	}

	userMsg := model.ChatMessage{SessionID: sessionID, AnalysisID: a.ID, Role: model.RoleUser, Text: message}
	if err := s.store.AppendChatMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	modelMsg := model.ChatMessage{SessionID: sessionID, AnalysisID: a.ID, Role: model.RoleModel, Text: reply}
	if err := s.store.AppendChatMessage(&modelMsg); err != nil {
		return nil, fmt.Errorf("append reply: %w", err)
	}

	return append(history, userMsg, modelMsg), nil
}

func (s *Service) reply(ctx context.Context, a *model.Analysis, history []model.ChatMessage, message string) (string, error) {
	if s.provider == nil {
		return "", llm.ErrMissingAPIKey
	}

	analysisJSON, err := json.MarshalIndent(a.Result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	instruction, err := prompts.BuildCoachInstruction(a.Result.StudentOrEmpty().FullName, string(analysisJSON))
	if err != nil {
		return "", err
	}

	turns := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, llm.Turn{Role: m.Role, Text: m.Text})
	}

	return s.provider.Chat(ctx, instruction, turns, message)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
