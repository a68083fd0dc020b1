package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 2048
	apiVersion       = "2023-06-01"

	// Replies from the model API are read up to this cap. Text replies at
	// the configured token limit stay far below it.
	maxResponseBodyBytes = 32 << 10
)

// Client calls the hosted vision model's Messages API. One synchronous
// request per call; no retries, no streaming.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Config holds vision client configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewClient creates a vision extraction client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Model is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}, nil
}

// message payload types for the Messages API.

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract sends the encoded image plus the instruction text and returns the
// model's raw text reply. Any transport or upstream failure surfaces as an
// external-service error carrying the upstream message.
func (c *Client) Extract(ctx context.Context, base64Payload, mimeType, instruction string) (string, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{Type: "image", Source: &imageSource{Type: "base64", MediaType: mimeType, Data: base64Payload}},
				{Type: "text", Text: instruction},
			},
		}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", svcerrors.ExternalService(fmt.Sprintf("vision model request failed: %v", err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return "", svcerrors.ExternalService(fmt.Sprintf("read vision model response: %v", err), err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", svcerrors.ExternalService(upstreamMessage(resp.StatusCode, respBody), nil)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", svcerrors.ExternalService(fmt.Sprintf("decode vision model response: %v", err), err)
	}

	// The first text block is the reply; image-only replies yield "".
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

func upstreamMessage(status int, body []byte) string {
	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return fmt.Sprintf("vision model error (%d): %s", status, parsed.Error.Message)
	}
	return fmt.Sprintf("vision model error (%d): %s", status, strings.TrimSpace(string(body)))
}
