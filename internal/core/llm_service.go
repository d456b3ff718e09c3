package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const describeImagePrompt = "Describe this image in two or three sentences. Mention the main objects, any visible text, and the setting."

// LLMService is the Gemini completion provider. It also serves the "gemini" vision endpoint.
type LLMService struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewLLMService returns a service whose calls fail with ErrNotConfigured when apiKey is empty.
func NewLLMService(ctx context.Context, apiKey, model string, timeout time.Duration) (*LLMService, error) {
	s := &LLMService{model: model, timeout: timeout}
	if apiKey == "" {
		return s, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			slog.Error("error closing GenAI client", "error", err)
		} else {
			slog.Info("GenAI client closed")
		}
	}
}

// Complete sends the leading system messages as the system instruction. Later system
// messages (search results) are replayed as user turns since Gemini has no system role in history.
func (s *LLMService) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("Gemini API key: %w", ErrNotConfigured)
	}

	instruction, history := toGeminiHistory(messages)
	if len(history) == 0 {
		return "", fmt.Errorf("prompt history is empty for chat completion")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return "", fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}

	model := s.client.GenerativeModel(s.model)
	if instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	}
	chat := model.StartChat()
	chat.History = history[:len(history)-1]

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", classifyTimeout(ctx, fmt.Errorf("gemini chat SendMessage failed: %w", err))
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// DescribeImage asks the multimodal model for a short prose description.
func (s *LLMService) DescribeImage(ctx context.Context, img Image) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("Gemini API key: %w", ErrNotConfigured)
	}

	model := s.client.GenerativeModel(s.model)
	temp := float32(0.3)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	resp, err := model.GenerateContent(ctx, genai.ImageData(img.Format(), img.Data), genai.Text(describeImagePrompt))
	if err != nil {
		return "", classifyTimeout(ctx, fmt.Errorf("gemini image description failed: %w", err))
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func toGeminiHistory(messages []ChatMessage) (string, []*genai.Content) {
	var instruction []string
	var history []*genai.Content
	for i, m := range messages {
		role := "user"
		switch m.Role {
		case "system":
			if len(history) == 0 {
				instruction = append(instruction, m.Content)
				continue
			}
		case "assistant":
			role = "model"
		}
		// Gemini expects alternating turns; fold consecutive same-role messages together.
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text("\n\n"+messages[i].Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(instruction, "\n\n"), history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		} else {
			slog.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	return strings.TrimSpace(b.String())
}
