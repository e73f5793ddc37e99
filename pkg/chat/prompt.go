package chat

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
	"github.com/go-go-golems/bookchat/pkg/selection"
)

// systemPromptBase constrains the assistant to book and literature topics,
// with redirection instructions for off-topic input.
const systemPromptBase = `You are a helpful book discussion assistant. You should only respond to questions and discussions about books, literature, reading, and related topics.

IMPORTANT GUIDELINES:
- Focus exclusively on book-related topics: plot, characters, themes, literary analysis, writing style, historical context, genre discussions, etc.
- If asked about topics unrelated to books or literature, politely redirect the conversation back to the book
- Provide thoughtful, insightful analysis about the text when discussing specific passages
- You can discuss broader literary concepts, but always in relation to books and reading
- If someone asks about completely unrelated topics (technology, politics, personal advice unrelated to reading, etc.), respond with something like: "I'm here to help discuss books and literature. Let's focus on the book you're reading. What would you like to explore about it?"`

// contextAck is the synthetic assistant turn acknowledging the one-time
// context block.
const contextAck = "I understand the context. I'm ready to help you discuss this book."

// buildRequest assembles the structured backend request: system preamble,
// one-time context block on the first message only, the full prior history
// in chronological order, and the new user turn last. The context block is
// never re-sent on later turns, even when the selection is still present.
func (o *Orchestrator) buildRequest(history []engine.Turn, userText string, isFirstMessage bool, snap selection.Snapshot) *engine.ChatRequest {
	sys := systemPromptBase + "\n\n"
	if o.book.Title != "" && o.book.Author != "" {
		sys += fmt.Sprintf("The current book being discussed is \"%s\" by %s.", o.book.Title, o.book.Author)
	} else {
		sys += "You are helping discuss a book the user is currently reading."
	}

	var turns []engine.Turn
	if isFirstMessage {
		if block := o.contextBlock(snap); block != "" {
			turns = append(turns,
				engine.Turn{Role: conversation.RoleUser, Text: "Context for this conversation:\n" + block},
				engine.Turn{Role: conversation.RoleAssistant, Text: contextAck},
			)
		}
	}
	turns = append(turns, history...)
	turns = append(turns, engine.Turn{Role: conversation.RoleUser, Text: userText})

	return &engine.ChatRequest{
		System: sys,
		Turns:  turns,
		Model:  o.model,
	}
}

// contextBlock quotes the selected passage and names the book. Empty when
// neither is known.
func (o *Orchestrator) contextBlock(snap selection.Snapshot) string {
	block := ""
	if !snap.Empty() {
		block += fmt.Sprintf("I'm reading a book and would like to discuss this passage:\n\n\"%s\"\n\n", snap.Text)
	}
	if o.book.Title != "" || o.book.Author != "" {
		title := o.book.Title
		if title == "" {
			title = "Unknown Title"
		}
		block += "Book context: " + title
		if o.book.Author != "" {
			block += " by " + o.book.Author
		}
		block += "\n\n"
	}
	return strings.TrimRight(block, "\n")
}

// apologyFor maps a backend failure to the apologetic assistant message the
// reader sees. Failures are never propagated past the orchestrator.
func apologyFor(err error) string {
	if errors.Is(err, engine.ErrNotConfigured) {
		return "Please configure your API key in settings to use the chat feature."
	}

	var be *engine.BackendError
	if errors.As(err, &be) {
		switch be.Kind {
		case engine.BackendErrorInvalidKey:
			return "Invalid API key. Please check your API key in settings."
		case engine.BackendErrorRateLimit:
			return "Rate limit exceeded. Please try again later."
		case engine.BackendErrorTimeout:
			return "The request timed out. Please try again."
		case engine.BackendErrorTransport:
			// fall through to the generic apology
		}
	}

	return "Sorry, I encountered an error. Please try again."
}
