package explain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a single non-streaming chat completion request.
type ChatRequest struct {
	Model       string
	Temperature float64
	Messages    []Message
}

// Chatter sends chat completion requests.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ErrEmptyCompletion is returned when the model answered with no content.
var ErrEmptyCompletion = errors.New("chat model returned an empty completion")

// OllamaChatter implements Chatter on top of the Ollama chat API.
type OllamaChatter struct {
	client *api.Client
}

// NewOllamaChatter creates a chat client for the server at host.
func NewOllamaChatter(host string, httpClient *http.Client) (*OllamaChatter, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid chat host %q: %w", host, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid chat host %q: scheme and host are required", host)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaChatter{client: api.NewClient(base, httpClient)}, nil
}

// Chat runs the request and returns the concatenated completion.
func (o *OllamaChatter) Chat(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}

	var response strings.Builder
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	content := strings.TrimSpace(response.String())
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
