package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type EventType string

const (
	// EventTypeStart fires when a send begins, before the backend call.
	EventTypeStart EventType = "start"
	// EventTypeFinal carries the assistant text appended to the transcript.
	EventTypeFinal EventType = "final"
	// EventTypeError fires when the backend call failed; the transcript
	// still receives an apologetic assistant message.
	EventTypeError EventType = "error"
)

// EventMetadata identifies which send of which conversation an event
// belongs to.
type EventMetadata struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Model          string    `json:"model,omitempty"`
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

// NewEventFromJson decodes an event published over the router back into its
// concrete type.
func NewEventFromJson(b []byte) (Event, error) {
	var probe EventImpl
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, errors.Wrap(err, "could not parse event")
	}

	switch probe.Type_ {
	case EventTypeStart:
		ret := &EventStart{}
		if err := json.Unmarshal(b, ret); err != nil {
			return nil, err
		}
		return ret, nil
	case EventTypeFinal:
		ret := &EventFinal{}
		if err := json.Unmarshal(b, ret); err != nil {
			return nil, err
		}
		return ret, nil
	case EventTypeError:
		ret := &EventError{}
		if err := json.Unmarshal(b, ret); err != nil {
			return nil, err
		}
		return ret, nil
	}

	return nil, errors.Errorf("unknown event type %s", probe.Type_)
}
