package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/sashabaranov/go-openai"

	"github.com/nhle/taskradar/internal/apperr"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClient creates a chat completions client. baseURL may point at
// any OpenAI-compatible server.
func NewOpenAIClient(apiKey, baseURL, modelName string, maxTokens int) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(config),
		model:     modelName,
		maxTokens: maxTokens,
	}
}

func (c *OpenAIClient) callTool(
	ctx context.Context,
	system, user string,
	tool toolSpec,
) ([]json.RawMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:               c.model,
		MaxCompletionTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Schema,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: tool.Name},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.Validation("OpenAI API", "response has no choices")
	}

	var inputs []json.RawMessage
	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == tool.Name {
			inputs = append(inputs, json.RawMessage(call.Function.Arguments))
		}
	}
	return inputs, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus("OpenAI API", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus("OpenAI API", reqErr.HTTPStatusCode, reqErr.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient("OpenAI API", err)
	}
	return apperr.New(apperr.KindUnknown, "OpenAI API", err)
}
