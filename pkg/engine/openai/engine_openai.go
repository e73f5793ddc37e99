package openai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/settings"
)

// OpenAIEngine implements the chat capability against the OpenAI chat
// completions API.
type OpenAIEngine struct {
	settings *settings.ChatSettings
}

func NewOpenAIEngine(s *settings.ChatSettings) *OpenAIEngine {
	return &OpenAIEngine{settings: s}
}

func (e *OpenAIEngine) IsConfigured() bool {
	return e.settings != nil && e.settings.IsConfigured()
}

func (e *OpenAIEngine) Chat(ctx context.Context, req *engine.ChatRequest) (*engine.ChatResponse, error) {
	if !e.IsConfigured() {
		return nil, engine.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, e.settings.TimeoutDuration())
	defer cancel()

	config := go_openai.DefaultConfig(e.settings.APIKey())
	if baseURL := e.settings.BaseURL(); baseURL != "" {
		config.BaseURL = baseURL
	}
	client := go_openai.NewClientWithConfig(config)

	modelName := req.Model
	if modelName == "" {
		modelName = e.settings.ModelName()
	}

	request := go_openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: messagesFromRequest(req),
	}
	if e.settings.Temperature != nil {
		request.Temperature = float32(*e.settings.Temperature)
	}
	if e.settings.MaxResponseTokens != nil {
		request.MaxTokens = *e.settings.MaxResponseTokens
	}

	log.Debug().
		Str("model", modelName).
		Int("num_messages", len(request.Messages)).
		Msg("openai chat request")

	resp, err := client.CreateChatCompletion(ctx, request)
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Msg("openai chat failed")
		return nil, engine.ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, engine.ClassifyError(errors.New("no completion choices returned"))
	}
	text := resp.Choices[0].Message.Content
	log.Debug().Int("response_len", len(text)).Msg("openai chat completed")

	return &engine.ChatResponse{Text: text}, nil
}

// messagesFromRequest maps the structured request to OpenAI messages. OpenAI
// has a native system role, so the preamble travels as a system message.
func messagesFromRequest(req *engine.ChatRequest) []go_openai.ChatCompletionMessage {
	var messages []go_openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, turn := range req.Turns {
		role := go_openai.ChatMessageRoleUser
		if turn.Role == conversation.RoleAssistant {
			role = go_openai.ChatMessageRoleAssistant
		}
		messages = append(messages, go_openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}

	return messages
}

var _ engine.Engine = (*OpenAIEngine)(nil)
