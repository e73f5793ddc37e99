package selection

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/bookchat/pkg/conversation"
)

func TestObserveSelectionCreatesSeededConversation(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	decision := binder.ObserveSelection("B1", Snapshot{Text: "the whale breached"})

	require.Equal(t, DecisionCreated, decision.Kind)
	convs := store.ListForBook("B1")
	require.Len(t, convs, 1)
	assert.Equal(t, decision.ConversationID, convs[0].ID)

	require.Len(t, convs[0].Messages, 1)
	seed := convs[0].Messages[0]
	assert.Equal(t, conversation.RoleAssistant, seed.Role)
	assert.Contains(t, seed.Content, `"the whale breached"`)
	assert.Equal(t, "the whale breached", seed.SelectedText)
}

func TestObserveSelectionUnchangedIsNoOp(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	first := binder.ObserveSelection("B1", Snapshot{Text: "call me Ishmael"})
	require.Equal(t, DecisionCreated, first.Kind)

	second := binder.ObserveSelection("B1", Snapshot{Text: "call me Ishmael"})
	assert.Equal(t, DecisionContinue, second.Kind)
	assert.Len(t, store.ListForBook("B1"), 1)
}

func TestObserveSelectionWhitespaceIsAbsent(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	decision := binder.ObserveSelection("B1", Snapshot{Text: "   \n\t"})

	assert.Equal(t, DecisionContinue, decision.Kind)
	assert.Empty(t, store.ListForBook("B1"))
}

func TestObserveSelectionWithActiveConversationOffersChoice(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	created := binder.ObserveSelection("B1", Snapshot{Text: "first passage"})
	require.Equal(t, DecisionCreated, created.Kind)

	decision := binder.ObserveSelection("B1", Snapshot{Text: "second passage"})
	assert.Equal(t, DecisionOfferChoice, decision.Kind)
	// no conversation was created behind the reader's back
	assert.Len(t, store.ListForBook("B1"), 1)
}

func TestStartNewConversationSeedsFromPendingSelection(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	_ = binder.ObserveSelection("B1", Snapshot{Text: "first passage"})
	decision := binder.ObserveSelection("B1", Snapshot{Text: "second passage"})
	require.Equal(t, DecisionOfferChoice, decision.Kind)

	id := binder.StartNewConversation("B1")

	conv, ok := store.Get(id)
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	assert.Contains(t, conv.Messages[0].Content, `"second passage"`)

	activeID, ok := store.Active()
	require.True(t, ok)
	assert.Equal(t, id, activeID)
}

func TestContinueActiveDropsSelection(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	_ = binder.ObserveSelection("B1", Snapshot{Text: "first passage"})
	_ = binder.ObserveSelection("B1", Snapshot{Text: "second passage"})

	binder.ContinueActive()

	assert.True(t, binder.Current().Empty())
}

func TestEnsureVisibleAutoSelectsMostRecent(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	older := store.Create("B1", nil)
	newer := store.Create("B1", nil)
	_ = older
	require.NoError(t, store.Append(newer, conversation.NewMessage(conversation.RoleUser, "bump")))
	require.NoError(t, store.SetActive(uuid.Nil))

	decision := binder.EnsureVisible("B1")

	require.Equal(t, DecisionCreated, decision.Kind)
	assert.Equal(t, newer, decision.ConversationID)
	activeID, ok := store.Active()
	require.True(t, ok)
	assert.Equal(t, newer, activeID)
}

func TestEnsureVisibleCreatesGreetingWhenEmpty(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	decision := binder.EnsureVisible("B1")

	require.Equal(t, DecisionCreated, decision.Kind)
	conv, ok := store.Get(decision.ConversationID)
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	assert.Contains(t, conv.Messages[0].Content, "Hello!")
	assert.Empty(t, conv.Messages[0].SelectedText)
}

func TestEnsureVisibleDefersToPendingSelection(t *testing.T) {
	store := conversation.NewStore()
	binder := NewBinder(store)

	// a selection is pending but no conversation exists yet: selection-driven
	// creation takes precedence, so becoming visible must not create one
	binder.mu.Lock()
	binder.pending = Snapshot{Text: "a pending passage"}
	binder.mu.Unlock()

	decision := binder.EnsureVisible("B1")

	assert.Equal(t, DecisionContinue, decision.Kind)
	assert.Empty(t, store.ListForBook("B1"))
}
