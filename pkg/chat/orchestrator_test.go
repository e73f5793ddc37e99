package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/selection"
)

type fakeEngine struct {
	requests []*engine.ChatRequest
	response string
	err      error
}

func (f *fakeEngine) IsConfigured() bool {
	return true
}

func (f *fakeEngine) Chat(_ context.Context, req *engine.ChatRequest) (*engine.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &engine.ChatResponse{Text: f.response}, nil
}

type fakeSelectionSource struct {
	snap    selection.Snapshot
	cleared bool
}

func (f *fakeSelectionSource) Current() selection.Snapshot {
	return f.snap
}

func (f *fakeSelectionSource) Clear() {
	f.snap = selection.Snapshot{}
	f.cleared = true
}

func TestSendAppendsUserAndAssistantTurns(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)
	require.NoError(t, store.Append(id, conversation.NewMessage(conversation.RoleAssistant, "seed")))
	require.NoError(t, store.Append(id, conversation.NewMessage(conversation.RoleUser, "earlier question")))

	eng := &fakeEngine{response: "It represents obsession."}
	orch := NewOrchestrator(store, eng)

	reply, err := orch.Send(context.Background(), id, "what does this symbolize?")
	require.NoError(t, err)
	assert.Equal(t, conversation.RoleAssistant, reply.Role)
	assert.Equal(t, "It represents obsession.", reply.Content)

	conv, ok := store.Get(id)
	require.True(t, ok)
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, "what does this symbolize?", conv.Messages[2].Content)
	assert.Equal(t, "It represents obsession.", conv.Messages[3].Content)

	// not a first message, so no context block was added
	require.Len(t, eng.requests, 1)
	req := eng.requests[0]
	require.Len(t, req.Turns, 3)
	assert.Equal(t, "seed", req.Turns[0].Text)
	assert.Equal(t, "earlier question", req.Turns[1].Text)
	assert.Equal(t, "what does this symbolize?", req.Turns[2].Text)
}

func TestSendFirstMessageAttachesSelectionContext(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)

	eng := &fakeEngine{response: "Let's dig in."}
	sel := &fakeSelectionSource{snap: selection.Snapshot{Text: "the whale breached"}}
	orch := NewOrchestrator(store, eng,
		WithSelectionSource(sel),
		WithBook(BookInfo{Key: "B1", Title: "Moby-Dick", Author: "Herman Melville"}),
	)

	_, err := orch.Send(context.Background(), id, "tell me about this passage")
	require.NoError(t, err)

	conv, ok := store.Get(id)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "the whale breached", conv.Messages[0].SelectedText)

	require.Len(t, eng.requests, 1)
	req := eng.requests[0]
	require.True(t, len(req.Turns) >= 3)
	assert.Contains(t, req.Turns[0].Text, "Context for this conversation:")
	assert.Contains(t, req.Turns[0].Text, `"the whale breached"`)
	assert.Contains(t, req.Turns[0].Text, "Moby-Dick")
	assert.Equal(t, conversation.RoleAssistant, req.Turns[1].Role)
	assert.Contains(t, req.System, `"Moby-Dick" by Herman Melville`)

	// the pending selection is cleared so follow-up turns are unconstrained
	assert.True(t, sel.cleared)
}

func TestSendContextBlockNotResent(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)

	eng := &fakeEngine{response: "answer"}
	sel := &fakeSelectionSource{snap: selection.Snapshot{Text: "a passage"}}
	orch := NewOrchestrator(store, eng, WithSelectionSource(sel))

	_, err := orch.Send(context.Background(), id, "first question")
	require.NoError(t, err)
	_, err = orch.Send(context.Background(), id, "second question")
	require.NoError(t, err)

	require.Len(t, eng.requests, 2)
	for _, turn := range eng.requests[1].Turns {
		assert.NotContains(t, turn.Text, "Context for this conversation:")
	}
}

func TestSendConvertsRateLimitToApology(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)
	require.NoError(t, store.Append(id, conversation.NewMessage(conversation.RoleUser, "hi")))

	eng := &fakeEngine{err: &engine.BackendError{
		Kind: engine.BackendErrorRateLimit,
		Err:  errors.New("429 too many requests"),
	}}
	orch := NewOrchestrator(store, eng)

	reply, err := orch.Send(context.Background(), id, "still there?")
	require.NoError(t, err)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", reply.Content)

	conv, ok := store.Get(id)
	require.True(t, ok)
	// one user turn and exactly one apologetic assistant turn were added
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[2].Role)
}

func TestSendNotConfiguredApology(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)

	eng := &fakeEngine{err: engine.ErrNotConfigured}
	orch := NewOrchestrator(store, eng)

	reply, err := orch.Send(context.Background(), id, "hello")
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "configure your API key")
}

func TestSendEmptyExtractionYieldsPlaceholder(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)

	eng := &fakeEngine{response: "   "}
	orch := NewOrchestrator(store, eng)

	reply, err := orch.Send(context.Background(), id, "hello")
	require.NoError(t, err)
	assert.Equal(t, NoResponsePlaceholder, reply.Content)
}

func TestSendRejectsEmptyText(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)

	orch := NewOrchestrator(store, &fakeEngine{response: "x"})

	_, err := orch.Send(context.Background(), id, "   ")
	require.Error(t, err)

	conv, ok := store.Get(id)
	require.True(t, ok)
	assert.Empty(t, conv.Messages)
}

func TestSendUnknownConversation(t *testing.T) {
	store := conversation.NewStore()
	orch := NewOrchestrator(store, &fakeEngine{response: "x"})

	_, err := orch.Send(context.Background(), uuid.New(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, conversation.ErrNotFound))
}

func TestSendHistoryStaysChronological(t *testing.T) {
	store := conversation.NewStore()
	id := store.Create("B1", nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(id, conversation.NewMessage(conversation.RoleUser, "q")))
		require.NoError(t, store.Append(id, conversation.NewMessage(conversation.RoleAssistant, "a")))
	}

	eng := &fakeEngine{response: "done"}
	orch := NewOrchestrator(store, eng)

	_, err := orch.Send(context.Background(), id, "final question")
	require.NoError(t, err)

	req := eng.requests[0]
	require.Len(t, req.Turns, 7)
	roles := make([]string, 0, len(req.Turns))
	for _, turn := range req.Turns {
		roles = append(roles, string(turn.Role))
	}
	assert.Equal(t, strings.Split("user,assistant,user,assistant,user,assistant,user", ","), roles)
}
