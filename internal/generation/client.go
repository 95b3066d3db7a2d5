package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	pkglogger "github.com/JxWayne890/complyflow-financial/pkg/logger"
)

// ClientConfig configures a ChatClient
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// ChatClient is a Generator backed by an OpenAI compatible
// /chat/completions endpoint
type ChatClient struct {
	cfg        ClientConfig
	kind       Kind
	httpClient *http.Client
}

// NewChatClient creates a ChatClient for the given capability
func NewChatClient(cfg ClientConfig, kind Kind) *ChatClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &ChatClient{
		cfg:        cfg,
		kind:       kind,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate makes exactly one call to the provider
func (c *ChatClient) Generate(ctx context.Context, req Request) (Result, error) {
	system, user := buildPrompt(c.kind, req)
	text, err := c.complete(ctx, system, user)
	if err != nil {
		pkglogger.GetLogger().Warn().Err(err).Str("kind", string(c.kind)).Str("action", string(req.Action)).Msg("generation call failed")
		return Result{}, err
	}
	return toResult(c.kind, req, text), nil
}

func (c *ChatClient) complete(ctx context.Context, system, user string) (string, error) {
	bodyBytes, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", Failf("encode request: %v", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", Failf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", Failf("generation request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Failf("read response: %v", err)
	}

	var parsed chatResponse
	jsonErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusOK {
		if jsonErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", &Error{Message: parsed.Error.Message}
		}
		return "", Failf("generation API error (%d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if jsonErr != nil {
		return "", Failf("decode response: %v", jsonErr)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", Failf("generator returned empty content")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
