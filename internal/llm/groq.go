package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"adaptive-meal-planner/internal/config"
	"adaptive-meal-planner/internal/shared"
)

const (
	groqAPIURL         = "https://api.groq.com/openai/v1/chat/completions"
	defaultTemperature = 0.3
)

// groqClient is a client for the Groq API.
type groqClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

// NewGroqClient creates a new Groq API client.
// The HTTP client carries no timeout of its own; callers bound a request
// through its context.
func NewGroqClient(cfg *config.Config) *groqClient {
	return &groqClient{
		apiKey:     cfg.GroqAPIKey,
		model:      cfg.GroqModel,
		url:        groqAPIURL,
		httpClient: &http.Client{},
	}
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateContent sends the request to Groq in JSON mode and returns the generated text.
func (c *groqClient) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	var messages []groqMessage
	if system := groqSystemMessage(req); system != "" {
		messages = append(messages, groqMessage{Role: "system", Content: system})
	}
	messages = append(messages, groqMessage{Role: "user", Content: req.Prompt})

	temperature := float32(defaultTemperature)
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	reqBody := map[string]interface{}{
		"model":           c.model,
		"messages":        messages,
		"temperature":     temperature,
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return ContentResponse{}, fmt.Errorf("groq api error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var groqResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&groqResp); err != nil {
		return ContentResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	usage := shared.TokenUsage{
		PromptTokens:     groqResp.Usage.PromptTokens,
		CompletionTokens: groqResp.Usage.CompletionTokens,
		TotalTokens:      groqResp.Usage.TotalTokens,
		Model:            c.model,
	}

	if len(groqResp.Choices) == 0 {
		return ContentResponse{Usage: usage}, fmt.Errorf("no content generated")
	}

	return ContentResponse{Content: groqResp.Choices[0].Message.Content, Usage: usage}, nil
}

// groqSystemMessage folds the schema into the system prompt, since Groq's
// JSON mode only guarantees syntactically valid JSON.
func groqSystemMessage(req Request) string {
	if req.Schema == nil {
		return req.SystemInstruction
	}
	var buf bytes.Buffer
	if req.SystemInstruction != "" {
		buf.WriteString(req.SystemInstruction)
		buf.WriteString("\n\n")
	}
	buf.WriteString("Respond with a single JSON object that conforms to this JSON Schema:\n")
	buf.WriteString(req.Schema.String())
	return buf.String()
}
