package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultTitleModelName = "gemini-1.5-flash-latest"

	titleSystemInstruction = "You name software projects from a client's description of what they want built. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."
)

// TitleGenerator produces a short project title from the respondent's first answer.
type TitleGenerator interface {
	GenerateProjectTitle(ctx context.Context, basis string) (string, error)
}

type LLMService struct {
	client *genai.Client
}

// NewLLMService returns nil without an API key; titles then stay derived
// from the first answer.
func NewLLMService(ctx context.Context, apiKey string) (*LLMService, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client}, nil
}

func (s *LLMService) Close() {
	if s == nil || s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		log.Printf("Error closing GenAI client: %v", err)
	} else {
		log.Println("GenAI client closed.")
	}
}

func (s *LLMService) GenerateProjectTitle(ctx context.Context, basis string) (string, error) {
	model := s.client.GenerativeModel(defaultTitleModelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(titleSystemInstruction)},
	}

	temp := float32(0.3)
	maxTokens := int32(20)

	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	prompt := fmt.Sprintf("Generate a concise 3-5 word title for this project or product: \"%s\".", basis)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini title generation request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("LLM did not generate a title (empty response)")
	}

	var titleText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			titleText.WriteString(string(txt))
		}
	}

	title := CleanTitle(titleText.String())
	if title == "" {
		return "", fmt.Errorf("LLM generated an empty title string")
	}
	return title, nil
}

// CleanTitle strips quoting and trailing punctuation models tend to add.
func CleanTitle(s string) string {
	return strings.Trim(s, "\"'\n\r\t .")
}
