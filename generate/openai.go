package generate

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"
)

// OpenAIConfig configures the chat completion transformer.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Temperature defaults to 0.5.
	Temperature float32
	// MaxRounds bounds the think-tool exchange. Defaults to 4.
	MaxRounds int
}

// OpenAI is a Transformer backed by a chat completion model. The model may
// call a "think" tool to plan before answering; those calls are logged and
// acknowledged.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	log    *zap.Logger
}

var thinkTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "think",
		Description: "Keep a lot of your thinking and planning to execute the user's requests.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"thought": {Type: jsonschema.String},
				"plan":    {Type: jsonschema.String},
			},
		},
	},
}

func NewOpenAI(cfg OpenAIConfig, log *zap.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.5
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 4
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), cfg: cfg, log: log}
}

func (o *OpenAI) Transform(ctx context.Context, req Request) (string, error) {
	log := o.log.With(zap.String("request_id", req.ID.String()), zap.String("kind", string(req.Kind)))
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt()},
	}

	for round := 0; round < o.cfg.MaxRounds; round++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       o.cfg.Model,
			Messages:    messages,
			Tools:       []openai.Tool{thinkTool},
			ToolChoice:  "auto",
			Temperature: o.cfg.Temperature,
		})
		if err != nil {
			return "", &TransportError{Err: err}
		}
		if len(resp.Choices) == 0 {
			return "", &TransportError{Err: errors.New("response has no choices")}
		}

		choice := resp.Choices[0]
		if choice.FinishReason == openai.FinishReasonStop || len(choice.Message.ToolCalls) == 0 {
			log.Debug("transform finished", zap.Int("rounds", round+1), zap.Int("total_tokens", resp.Usage.TotalTokens))
			return choice.Message.Content, nil
		}

		messages = append(messages, choice.Message)
		for _, call := range choice.Message.ToolCalls {
			log.Debug("tool call", zap.String("tool", call.Function.Name), zap.String("arguments", call.Function.Arguments))
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    "ok",
			})
		}
	}
	return "", &TransportError{Err: errors.New("model kept calling tools without answering")}
}
