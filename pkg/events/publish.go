package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventSink receives chat lifecycle events. Sinks must be non-blocking from
// the orchestrator's point of view and never fail a send.
type EventSink interface {
	PublishEvent(e Event) error
}

// WatermillSink publishes events as JSON messages on a watermill topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (s *WatermillSink) PublishEvent(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	return s.publisher.Publish(s.topic, msg)
}

var _ EventSink = (*WatermillSink)(nil)

// PublishBlind publishes to every sink, logging failures instead of
// surfacing them: event delivery must never break a conversation turn.
func PublishBlind(e Event, sinks ...EventSink) {
	for _, sink := range sinks {
		if err := sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("failed to publish event")
		}
	}
}
