package ai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI completes through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates a client. An empty baseURL keeps the library default.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserContent,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Params.Model,
		Messages:    messages,
		Temperature: req.Params.Temperature,
		MaxTokens:   int(req.Params.MaxOutputTokens),
		TopP:        req.Params.TopP,
	})
	if err != nil {
		return "", failed("openai", withStatus(err))
	}
	if len(resp.Choices) == 0 {
		return "", failed("openai", errEmpty)
	}

	reply := cleanReply(resp.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", failed("openai", errEmpty)
	}
	return reply, nil
}

func withStatus(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &statusError{code: apiErr.HTTPStatusCode, err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &statusError{code: reqErr.HTTPStatusCode, err: err}
	}
	return err
}
