// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts supportmesh's normalized Request/Result
// structures into the SDK's message format and back, and maps SDK failures
// onto the engine's model error taxonomy.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/barefootzenith/supportmesh/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Schema-constrained requests enable JSON
// mode and embed the schema in the prompt; output conformance is still the
// caller's parse step.
func (m *Model) Generate(ctx context.Context, req model.Request) (model.Result, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	messages = append(messages, openai.UserMessage(promptWithSchema(req)))

	maxTokens := m.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Result{}, classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return model.Result{}, model.NewError(model.ErrInvalidOutput, fmt.Errorf("no choices returned"))
	}

	return model.Result{
		Text: resp.Choices[0].Message.Content,
		Usage: model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}

// promptWithSchema appends the expected JSON Schema to the prompt when the
// caller requested structured output.
func promptWithSchema(req model.Request) string {
	if req.Schema == nil {
		return req.Prompt
	}
	raw, err := json.Marshal(req.Schema)
	if err != nil {
		return req.Prompt
	}
	return req.Prompt + "\n\nRespond with a single JSON object conforming to this JSON Schema:\n" + string(raw)
}

// classifyErr maps SDK failures onto the model error taxonomy.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.NewError(model.ErrTimeout, err)
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return model.NewError(model.ErrRateLimited, err)
		case apierr.StatusCode == 408:
			return model.NewError(model.ErrTimeout, err)
		default:
			return model.NewError(model.ErrUnavailable, err)
		}
	}
	return model.NewError(model.ErrUnavailable, fmt.Errorf("openai api error: %w", err))
}
