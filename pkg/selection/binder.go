package selection

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bookchat/pkg/conversation"
)

type DecisionKind string

const (
	// DecisionContinue means the active conversation stays as it is.
	DecisionContinue DecisionKind = "continue"
	// DecisionOfferChoice means the presentation layer should ask the reader
	// whether to continue the active conversation or start a new one.
	DecisionOfferChoice DecisionKind = "offer-choice"
	// DecisionCreated means the policy created (or auto-selected) a
	// conversation; ConversationID names it.
	DecisionCreated DecisionKind = "created"
)

// Decision is the policy's only output. The binder itself performs no UI
// side effects; the presentation layer consumes the decision.
type Decision struct {
	Kind           DecisionKind
	ConversationID uuid.UUID
}

// Binder decides, on every selection change, whether to silently continue
// the active conversation, offer the reader a choice, or start a new
// conversation seeded from the selection. It also owns the pending selection
// the orchestrator attaches to a conversation's first user turn.
type Binder struct {
	store *conversation.Store

	mu           sync.Mutex
	lastSeenText string
	pending      Snapshot
}

func NewBinder(store *conversation.Store) *Binder {
	return &Binder{store: store}
}

// ObserveSelection evaluates the policy for a newly reported selection.
// Re-observing an unchanged selection is a no-op, as is an empty or
// whitespace-only one.
func (b *Binder) ObserveSelection(bookKey string, snap Snapshot) Decision {
	if snap.Empty() {
		return Decision{Kind: DecisionContinue}
	}

	b.mu.Lock()
	if snap.Text == b.lastSeenText {
		b.mu.Unlock()
		return Decision{Kind: DecisionContinue}
	}
	b.lastSeenText = snap.Text
	b.pending = snap
	b.mu.Unlock()

	if active, ok := b.store.ActiveConversation(); ok && active.BookKey == bookKey {
		log.Debug().
			Str("book_key", bookKey).
			Str("conversation_id", active.ID.String()).
			Msg("selection changed with active conversation, offering choice")
		return Decision{Kind: DecisionOfferChoice}
	}

	id := b.createSeeded(bookKey)
	return Decision{Kind: DecisionCreated, ConversationID: id}
}

// EnsureVisible runs when the chat surface first becomes visible for a book
// with no active conversation: it auto-selects the most recently updated
// conversation for the book, or creates a generic greeting conversation when
// none exists and no selection is pending. A pending selection wins, since
// selection-driven creation is about to seed its own conversation.
func (b *Binder) EnsureVisible(bookKey string) Decision {
	if _, ok := b.store.Active(); ok {
		return Decision{Kind: DecisionContinue}
	}

	if convs := b.store.ListForBook(bookKey); len(convs) > 0 {
		_ = b.store.SetActive(convs[0].ID)
		log.Debug().
			Str("book_key", bookKey).
			Str("conversation_id", convs[0].ID.String()).
			Msg("auto-selected most recent conversation")
		return Decision{Kind: DecisionCreated, ConversationID: convs[0].ID}
	}

	b.mu.Lock()
	hasPending := !b.pending.Empty()
	b.mu.Unlock()
	if hasPending {
		return Decision{Kind: DecisionContinue}
	}

	id := b.store.Create(bookKey, GreetingSeed())
	return Decision{Kind: DecisionCreated, ConversationID: id}
}

// StartNewConversation creates a conversation for bookKey using the same
// seeding rules as selection-driven creation, replacing the active one. It
// backs both the explicit "new conversation" action and the "start new"
// branch of an offered choice.
func (b *Binder) StartNewConversation(bookKey string) uuid.UUID {
	return b.createSeeded(bookKey)
}

// ContinueActive resolves an offered choice in favor of the existing
// conversation: the selection is dropped and ignored for this turn.
func (b *Binder) ContinueActive() {
	b.mu.Lock()
	b.pending = Snapshot{}
	b.mu.Unlock()
}

// Current returns the pending selection, read by the orchestrator when it
// assembles a conversation's first turn.
func (b *Binder) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Clear drops the pending selection so follow-up turns are unconstrained by
// it. The orchestrator calls this after a conversation's first send.
func (b *Binder) Clear() {
	b.mu.Lock()
	b.pending = Snapshot{}
	b.mu.Unlock()
}

func (b *Binder) createSeeded(bookKey string) uuid.UUID {
	b.mu.Lock()
	pending := b.pending
	b.mu.Unlock()

	var seed *conversation.Message
	if pending.Empty() {
		seed = GreetingSeed()
	} else {
		seed = PassageSeed(pending)
	}

	return b.store.Create(bookKey, seed)
}

// PassageSeed synthesizes the assistant message that opens a conversation
// anchored to a selected passage, quoting the selection verbatim.
func PassageSeed(snap Snapshot) *conversation.Message {
	content := fmt.Sprintf(
		"I'll help you discuss this passage from the book. You've selected:\n\n\"%s\"\n\nWhat would you like to know or discuss about this text?",
		snap.Text,
	)
	return conversation.NewMessage(conversation.RoleAssistant, content,
		conversation.WithSelectedText(snap.Text))
}

// GreetingSeed synthesizes the generic assistant message that opens a
// conversation with no selection.
func GreetingSeed() *conversation.Message {
	return conversation.NewMessage(conversation.RoleAssistant,
		"Hello! I'm here to help you discuss this book. You can select any text passage to discuss it specifically, or ask me general questions about the book, its themes, characters, or any other literary topics.")
}
