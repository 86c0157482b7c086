package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	// ErrMissingAPIKey is returned before any network call when no credential is configured.
	ErrMissingAPIKey = errors.New("API key is not configured")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrNoJSON is returned when the response text contains no JSON object.
	ErrNoJSON = errors.New("no JSON object found in model response")
	// ErrUnsupportedDocument is returned before any network call for a document type the
	// provider cannot forward.
	ErrUnsupportedDocument = errors.New("document type is not supported by this provider")
)

// AnalysisTemperature is used for every analysis request; Config.Temperature applies to chat.
const AnalysisTemperature float32 = 0.1

// Document is a file forwarded to the model.
type Document struct {
	MIMEType string
	Data     []byte
}

// Turn is one prior entry of a conversation.
type Turn struct {
	Role model.Role
	Text string
}

// Provider is a hosted generative model.
type Provider interface {
	// Analyze sends the document with the fixed analysis instruction and response schema and
	// returns the raw response text.
	Analyze(ctx context.Context, doc Document) (string, error)
	// Chat sends message after history under the given system instruction and returns the reply.
	Chat(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error)
	// Ping checks that the endpoint and credential are usable.
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	BaseURL     string // OpenAI-compatible endpoint; ignored by gemini
	APIKey      string
	Model       string
	Temperature float32 // chat sampling temperature
}

// New creates the configured provider. It returns ErrMissingAPIKey without touching the
// network when no key is set.
func New(ctx context.Context, cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	case ProviderOpenAI:
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// ExtractObject returns the substring between the first '{' and the last '}' of text.
// It tolerates incidental wrapping such as code fences or prose around the object.
func ExtractObject(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}
