// Package llm wraps the Gemini API: embeddings plus plain and streaming
// generation.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	defaultChatModelName      = "gemini-2.5-pro"
	defaultEmbeddingModelName = "text-embedding-004"
)

type Client struct {
	client      *genai.Client
	temperature float32
}

func NewClient(ctx context.Context, apiKey string, temperature float64) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{
		client:      client,
		temperature: float32(temperature),
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Embed maps text to a fixed-length vector. Same text, same vector: the
// embedding model is content-only.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (c *Client) chatModel(instruction string) *genai.GenerativeModel {
	model := c.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}
	temp := c.temperature
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	return model
}

// Generate runs one non-streaming completion for (instruction, userText).
func (c *Client) Generate(ctx context.Context, instruction, userText string) (string, error) {
	model := c.chatModel(instruction)
	resp, err := model.GenerateContent(ctx, genai.Text(userText))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// GenerateStream runs a streaming completion, invoking onFragment for each
// text fragment in model order, and returns the concatenated response. An
// onFragment error cancels the stream and is returned as-is.
func (c *Client) GenerateStream(ctx context.Context, instruction, userText string, onFragment func(string) error) (string, error) {
	model := c.chatModel(instruction)
	iter := model.GenerateContentStream(ctx, genai.Text(userText))

	var full strings.Builder
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream failed: %w", err)
		}
		fragment := responseText(resp)
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		if onFragment != nil {
			if err := onFragment(fragment); err != nil {
				return "", err
			}
		}
	}

	if full.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty stream")
	}
	return full.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
