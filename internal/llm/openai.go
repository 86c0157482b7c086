package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkkukul/Elif-Hoca/internal/llm/prompts"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// OpenAI wraps an OpenAI-compatible API client.
type OpenAI struct {
	api         *openai.Client
	model       string
	temperature float32
}

// DefaultOpenAIModel is used when no model name is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// NewOpenAI creates a client for an OpenAI-compatible endpoint.
func NewOpenAI(baseURL, apiKey, modelName string, temperature float32) *OpenAI {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		temperature: temperature,
	}
}

// Analyze implements Provider. The document travels as a base64 data URL image part, so
// only images are accepted; PDFs fail with ErrUnsupportedDocument.
func (c *OpenAI) Analyze(ctx context.Context, doc Document) (string, error) {
	if !strings.HasPrefix(doc.MIMEType, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, doc.MIMEType)
	}
	instruction, err := prompts.AnalysisInstruction()
	if err != nil {
		return "", err
	}
	request, err := prompts.AnalysisRequest()
	if err != nil {
		return "", err
	}

	dataURL := "data:" + doc.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh},
					},
					{Type: openai.ChatMessagePartTypeText, Text: request},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "exam_analysis",
				Schema: prompts.ResponseSchema(),
			},
		},
		Temperature: AnalysisTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM analysis response", "bytes", len(raw))
	return raw, nil
}

// Chat implements Provider.
func (c *OpenAI) Chat(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error) {
	chatMsgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
	}

	for _, t := range history {
		role := openai.ChatMessageRoleUser
		text := t.Text
		if t.Role == model.RoleModel {
			role = openai.ChatMessageRoleAssistant
		} else {
			text = prompts.WrapStudentMessage(text)
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompts.WrapStudentMessage(message),
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM chat API call: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping implements Provider by listing available models.
func (c *OpenAI) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Close implements Provider.
func (c *OpenAI) Close() error { return nil }
