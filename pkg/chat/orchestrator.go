package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/events"
	"github.com/go-go-golems/bookchat/pkg/selection"
)

// NoResponsePlaceholder stands in for a backend response from which no text
// could be extracted. Empty extraction is treated as success, never as an
// error the reader sees.
const NoResponsePlaceholder = "No response generated"

// BookInfo names the book a conversation is about, supplied by the reading
// surface.
type BookInfo struct {
	Key    string
	Title  string
	Author string
}

// SelectionSource exposes the pending selection snapshot. The orchestrator
// reads it when assembling a conversation's first turn and clears it
// afterwards so follow-up turns are unconstrained.
type SelectionSource interface {
	Current() selection.Snapshot
	Clear()
}

// Orchestrator turns a pending user message plus conversation history plus
// optional selection/book context into a structured backend request, and
// normalizes the result (or failure) back into an assistant message.
//
// The caller owns per-conversation serialization: while a Send is in flight
// for a conversation, further submissions for it must be held back. Sends
// for different conversations are independent.
type Orchestrator struct {
	store  *conversation.Store
	engine engine.Engine
	book   BookInfo
	sel    SelectionSource
	sinks  []events.EventSink
	model  string
	codec  tokenizer.Codec
}

type Option func(*Orchestrator)

func WithBook(book BookInfo) Option {
	return func(o *Orchestrator) {
		o.book = book
	}
}

func WithSelectionSource(sel SelectionSource) Option {
	return func(o *Orchestrator) {
		o.sel = sel
	}
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithModel sets the model identifier sent with every request. When empty,
// the backend adapter falls back to its configured default.
func WithModel(model string) Option {
	return func(o *Orchestrator) {
		o.model = model
	}
}

func NewOrchestrator(store *conversation.Store, eng engine.Engine, options ...Option) *Orchestrator {
	ret := &Orchestrator{
		store:  store,
		engine: eng,
	}

	for _, option := range options {
		option(ret)
	}

	if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
		ret.codec = codec
	}

	return ret
}

// Send appends the user's turn, invokes the backend, and appends the reply.
// Backend failures are converted into apologetic assistant messages: a
// submitted user turn always receives some assistant reply in the
// transcript. Send only errors on violated preconditions (empty text,
// unknown conversation).
func (o *Orchestrator) Send(ctx context.Context, conversationID uuid.UUID, userText string) (*conversation.Message, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, errors.New("empty user message")
	}

	conv, ok := o.store.Get(conversationID)
	if !ok {
		return nil, errors.Wrapf(conversation.ErrNotFound, "send to %s", conversationID)
	}

	// decided before the user's turn is appended
	isFirstMessage := len(conv.Messages) == 0

	var snap selection.Snapshot
	if o.sel != nil {
		snap = o.sel.Current()
	}

	history := make([]engine.Turn, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		history = append(history, engine.Turn{Role: msg.Role, Text: msg.Content})
	}

	var userOptions []conversation.MessageOption
	if isFirstMessage && !snap.Empty() {
		userOptions = append(userOptions, conversation.WithSelectedText(snap.Text))
	}
	if err := o.store.Append(conversationID, conversation.NewMessage(conversation.RoleUser, userText, userOptions...)); err != nil {
		return nil, err
	}

	req := o.buildRequest(history, userText, isFirstMessage, snap)
	o.logTokenEstimate(req)

	metadata := events.EventMetadata{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Model:          req.Model,
	}
	events.PublishBlind(events.NewStartEvent(metadata), o.sinks...)

	resp, err := o.engine.Chat(ctx, req)

	var text string
	if err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", conversationID.String()).
			Msg("backend call failed")
		events.PublishBlind(events.NewErrorEvent(metadata, err), o.sinks...)
		text = apologyFor(err)
	} else {
		text = resp.Text
		if strings.TrimSpace(text) == "" {
			text = NoResponsePlaceholder
		}
	}

	reply := conversation.NewMessage(conversation.RoleAssistant, text)
	if appendErr := o.store.Append(conversationID, reply); appendErr != nil {
		// conversation was deleted while the call was in flight
		return nil, appendErr
	}

	if err == nil {
		events.PublishBlind(events.NewFinalEvent(metadata, text), o.sinks...)
	}

	if isFirstMessage && o.sel != nil {
		o.sel.Clear()
	}

	return reply, nil
}

func (o *Orchestrator) logTokenEstimate(req *engine.ChatRequest) {
	if o.codec == nil {
		return
	}
	text := req.System
	for _, turn := range req.Turns {
		text += "\n" + turn.Text
	}
	ids, _, err := o.codec.Encode(text)
	if err != nil {
		return
	}
	log.Debug().
		Int("prompt_tokens_estimate", len(ids)).
		Int("num_turns", len(req.Turns)).
		Str("model", req.Model).
		Msg("assembled chat request")
}
