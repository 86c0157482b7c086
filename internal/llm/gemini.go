package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/mkkukul/Elif-Hoca/internal/llm/prompts"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini talks to the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey, modelName string, temperature float32) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: modelName, temperature: temperature}, nil
}

// Analyze implements Provider.
func (g *Gemini) Analyze(ctx context.Context, doc Document) (string, error) {
	instruction, err := prompts.AnalysisInstruction()
	if err != nil {
		return "", err
	}
	request, err := prompts.AnalysisRequest()
	if err != nil {
		return "", err
	}

	m := g.analysisModel(instruction)
	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: doc.MIMEType, Data: doc.Data},
		genai.Text(request),
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	raw := responseText(resp)
	slog.Debug("gemini analysis response", "bytes", len(raw))
	return raw, nil
}

func (g *Gemini) analysisModel(instruction string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = toGenaiSchema(prompts.ResponseSchema())
	m.SetTemperature(AnalysisTemperature)
	return m
}

// Chat implements Provider.
func (g *Gemini) Chat(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	m.SetTemperature(g.temperature)

	// Gemini rejects histories that open with a model turn, so a canned greeting is skipped.
	for len(history) > 0 && history[0].Role == model.RoleModel {
		history = history[1:]
	}

	cs := m.StartChat()
	for _, t := range history {
		role := "user"
		text := t.Text
		if t.Role == model.RoleModel {
			role = "model"
		} else {
			text = prompts.WrapStudentMessage(text)
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(prompts.WrapStudentMessage(message)))
	if err != nil {
		return "", fmt.Errorf("gemini send message: %w", err)
	}
	reply := responseText(resp)
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}

// Ping implements Provider by listing a single model.
func (g *Gemini) Ping(ctx context.Context) error {
	it := g.client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("gemini list models: %w", err)
	}
	return nil
}

// Close implements Provider.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func toGenaiSchema(s *prompts.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Nullable:    s.Nullable,
		Required:    s.Required,
	}
	switch s.Type {
	case prompts.TypeObject:
		out.Type = genai.TypeObject
	case prompts.TypeArray:
		out.Type = genai.TypeArray
	case prompts.TypeNumber:
		out.Type = genai.TypeNumber
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for _, name := range s.PropertyNames() {
			out.Properties[name] = toGenaiSchema(s.Properties[name])
		}
	}
	out.Items = toGenaiSchema(s.Items)
	return out
}
