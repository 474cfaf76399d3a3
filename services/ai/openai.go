// Package aisvc implements chat.Completer against an OpenAI-compatible API, or with canned replies.
package aisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/chat"
)

// OpenAICompleter calls the `/chat/completions` endpoint of an OpenAI-compatible API.
type OpenAICompleter struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

var _ chat.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(conf *core.Config) *OpenAICompleter {
	return &OpenAICompleter{
		client:    &http.Client{Timeout: conf.AI.Timeout},
		baseURL:   conf.AI.BaseURL,
		apiKey:    conf.AI.APIKey,
		model:     conf.AI.Model,
		maxTokens: conf.AI.MaxTokens,
	}
}

type (
	completionRequest struct {
		Model     string      `json:"model"`
		Messages  []chat.Turn `json:"messages"`
		MaxTokens int         `json:"max_tokens,omitempty"`
	}

	completionResponse struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
)

func (c *OpenAICompleter) Complete(ctx context.Context, turns []chat.Turn) (chat.Completion, error) {
	payload, err := json.Marshal(completionRequest{Model: c.model, Messages: turns, MaxTokens: c.maxTokens})
	if err != nil {
		return chat.Completion{}, errors.Wrap(err, "encoding completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return chat.Completion{}, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return chat.Completion{}, errors.Wrap(err, "requesting completion")
	}
	defer func() { _ = res.Body.Close() }()

	var cr completionResponse
	if err = json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&cr); err != nil {
		return chat.Completion{}, errors.Wrapf(err, "decoding completion response (status %d)", res.StatusCode)
	}
	if cr.Error != nil && cr.Error.Message != "" {
		return chat.Completion{}, fmt.Errorf("completion failed (status %d): %s", res.StatusCode, cr.Error.Message)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return chat.Completion{}, fmt.Errorf("completion failed (status %d)", res.StatusCode)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return chat.Completion{}, errors.New("completion has no content")
	}

	model := cr.Model
	if model == "" {
		model = c.model
	}
	return chat.Completion{Content: cr.Choices[0].Message.Content, Model: model}, nil
}
