package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nhle/taskradar/internal/apperr"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	apiVersion       = "2023-06-01"
)

// AnthropicClient calls the Claude Messages API with a forced tool choice.
type AnthropicClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewAnthropicClient creates a Messages API client. Empty values fall back
// to the defaults.
func NewAnthropicClient(apiKey, baseURL, modelName string, maxTokens int) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicClient{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{},
	}
}

// callTool makes a single request to the Claude Messages API.
func (a *AnthropicClient) callTool(
	ctx context.Context,
	system, user string,
	tool toolSpec,
) ([]json.RawMessage, error) {
	reqBody := apiRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages: []apiMessage{{
			Role:    "user",
			Content: []apiContentBlock{{Type: "text", Text: user}},
		}},
		Tools: []apiTool{{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Schema,
		}},
		ToolChoice: &apiToolChoice{Type: "tool", Name: tool.Name},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.baseURL+messagesPath, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.Transient("calling Claude API", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transient("reading Claude response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("Claude API", resp.StatusCode, apiErrorMessage(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, apperr.New(apperr.KindValidation, "decoding Claude response", err)
	}

	var inputs []json.RawMessage
	for _, block := range result.Content {
		if block.Type == "tool_use" && block.Name == tool.Name {
			inputs = append(inputs, block.Input)
		}
	}
	return inputs, nil
}

func apiErrorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return string(body)
}

// classifyStatus maps a provider HTTP status onto the error taxonomy.
// Rate limits, overload and server errors are transient; auth failures
// mean the key is missing or wrong.
func classifyStatus(provider string, status int, message string) error {
	err := fmt.Errorf("API error (%d): %s", status, message)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.New(apperr.KindConfigurationMissing, provider, err)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return apperr.Transient(provider, err)
	default:
		return apperr.New(apperr.KindUnknown, provider, err)
	}
}

// --- Claude API types ---

type apiRequest struct {
	Model      string         `json:"model"`
	MaxTokens  int            `json:"max_tokens"`
	System     string         `json:"system"`
	Messages   []apiMessage   `json:"messages"`
	Tools      []apiTool      `json:"tools,omitempty"`
	ToolChoice *apiToolChoice `json:"tool_choice,omitempty"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	// Common fields
	Type string `json:"type"`

	// For text blocks
	Text string `json:"text,omitempty"`

	// For tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type apiToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}
