package gemini

import (
	"context"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/settings"
)

// preambleAck is the synthetic model turn acknowledging the system preamble.
// Gemini has no system role in this request shape, so the preamble travels
// as an opening user/model exchange.
const preambleAck = "I understand. I'm here to help you discuss this book and literature-related topics. I'll keep our conversation focused on the book you're reading and literary analysis."

// GeminiEngine implements the chat capability against Google's Gemini API.
type GeminiEngine struct {
	settings *settings.ChatSettings
}

func NewGeminiEngine(s *settings.ChatSettings) *GeminiEngine {
	return &GeminiEngine{settings: s}
}

func (e *GeminiEngine) IsConfigured() bool {
	return e.settings != nil && e.settings.IsConfigured()
}

func (e *GeminiEngine) Chat(ctx context.Context, req *engine.ChatRequest) (*engine.ChatResponse, error) {
	if !e.IsConfigured() {
		return nil, engine.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, e.settings.TimeoutDuration())
	defer cancel()

	opts := []option.ClientOption{option.WithAPIKey(e.settings.APIKey())}
	if baseURL := e.settings.BaseURL(); baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, engine.ClassifyError(errors.Wrap(err, "failed to create gemini client"))
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gemini client")
		}
	}()

	modelName := req.Model
	if modelName == "" {
		modelName = e.settings.ModelName()
	}
	model := client.GenerativeModel(modelName)

	if e.settings.Temperature != nil || e.settings.MaxResponseTokens != nil {
		cfg := genai.GenerationConfig{}
		if e.settings.Temperature != nil {
			v := float32(*e.settings.Temperature)
			cfg.Temperature = &v
		}
		if e.settings.MaxResponseTokens != nil {
			v := int32(*e.settings.MaxResponseTokens) // #nosec G115
			cfg.MaxOutputTokens = &v
		}
		model.GenerationConfig = cfg
	}

	contents := contentsFromRequest(req)
	if len(contents) == 0 {
		return nil, engine.ClassifyError(errors.New("empty request"))
	}

	log.Debug().
		Str("model", modelName).
		Int("num_contents", len(contents)).
		Msg("gemini chat request")

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		log.Error().Err(err).Str("model", modelName).Msg("gemini chat failed")
		return nil, engine.ClassifyError(err)
	}

	text := ExtractText(resp)
	log.Debug().Int("response_len", len(text)).Msg("gemini chat completed")

	return &engine.ChatResponse{Text: text}, nil
}

// contentsFromRequest maps the structured request to Gemini contents in
// exact request order: preamble exchange first, then every turn, with
// "assistant" mapped to Gemini's "model" role.
func contentsFromRequest(req *engine.ChatRequest) []*genai.Content {
	var contents []*genai.Content

	if req.System != "" {
		contents = append(contents,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(req.System)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(preambleAck)}},
		)
	}

	for _, turn := range req.Turns {
		role := "user"
		if turn.Role == conversation.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	return contents
}

var _ engine.Engine = (*GeminiEngine)(nil)
