package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   float64
	Timeout       time.Duration
	MaxRetries    int
	RatePerSecond float64
}

type OpenAICompatibleClient struct {
	cfg ChatConfig
	req *requester
}

func NewOpenAICompatibleClient(cfg ChatConfig) *OpenAICompatibleClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		cfg: cfg,
		req: newRequester(cfg.Timeout, cfg.RatePerSecond, cfg.MaxRetries, cfg.APIKey),
	}
}

func (c *OpenAICompatibleClient) Model() string {
	return c.cfg.Model
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	if err := c.req.postJSON(ctx, url, map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    messages,
		"temperature": c.cfg.Temperature,
		"stream":      false,
	}, &parsed); err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", errors.New("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
