package ollama

import (
	"context"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/settings"
)

// OllamaEngine implements the chat capability against a local ollama daemon.
// No credential is required; the daemon address comes from the environment.
type OllamaEngine struct {
	settings *settings.ChatSettings
}

func NewOllamaEngine(s *settings.ChatSettings) *OllamaEngine {
	return &OllamaEngine{settings: s}
}

func (e *OllamaEngine) IsConfigured() bool {
	return e.settings != nil && e.settings.IsConfigured()
}

func (e *OllamaEngine) Chat(ctx context.Context, req *engine.ChatRequest) (*engine.ChatResponse, error) {
	if !e.IsConfigured() {
		return nil, engine.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, e.settings.TimeoutDuration())
	defer cancel()

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, engine.ClassifyError(errors.Wrap(err, "failed to create ollama client"))
	}

	modelName := req.Model
	if modelName == "" {
		modelName = e.settings.ModelName()
	}

	messages := messagesFromRequest(req)
	log.Debug().
		Str("model", modelName).
		Int("num_messages", len(messages)).
		Msg("ollama chat request")

	text := ""
	chatReq := &api.ChatRequest{
		Model:    modelName,
		Messages: messages,
	}
	err = client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		text += resp.Message.Content
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Msg("ollama chat failed")
		return nil, engine.ClassifyError(err)
	}

	log.Debug().Int("response_len", len(text)).Msg("ollama chat completed")
	return &engine.ChatResponse{Text: text}, nil
}

func messagesFromRequest(req *engine.ChatRequest) []api.Message {
	var messages []api.Message

	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}

	for _, turn := range req.Turns {
		role := "user"
		if turn.Role == conversation.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, api.Message{Role: role, Content: turn.Text})
	}

	return messages
}

var _ engine.Engine = (*OllamaEngine)(nil)
