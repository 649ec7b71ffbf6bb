package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Failure domains of the LLM call, discriminated by errors.Is.
var (
	ErrAPIStatus = errors.New("openai: unexpected status")
	ErrNoChoices = errors.New("openai: response contained no choices")
)

// placeholder replaced by the formatted portfolio inside the prompt template.
const portfolioPlaceholder = "{portfolio_data}"

// Client calls an OpenAI-compatible chat-completion API.
type Client struct {
	Model       string
	Temperature float64
	MaxTokens   int

	rest *resty.Client
}

// NewClient configures the HTTP client for the given endpoint and key.
func NewClient(baseURL, apiKey, model string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		rest:        rest,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze substitutes the formatted portfolio into the prompt template and
// returns the model's completion.
func (c *Client) Analyze(ctx context.Context, promptTemplate, formattedPortfolio string) (string, error) {
	prompt := strings.ReplaceAll(promptTemplate, portfolioPlaceholder, formattedPortfolio)

	body := chatRequest{
		Model:       c.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}

	var result chatResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: %d: %s", ErrAPIStatus, resp.StatusCode(), resp.String())
	}
	if len(result.Choices) == 0 {
		return "", ErrNoChoices
	}
	return result.Choices[0].Message.Content, nil
}

// SaveAnalysis writes the completion to a text file.
func SaveAnalysis(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}
