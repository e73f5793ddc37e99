package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	metadata := EventMetadata{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		Model:          "gemini-2.0-flash-001",
	}

	t.Run("final", func(t *testing.T) {
		b, err := json.Marshal(NewFinalEvent(metadata, "an answer"))
		require.NoError(t, err)

		ev, err := NewEventFromJson(b)
		require.NoError(t, err)
		assert.Equal(t, EventTypeFinal, ev.Type())
		assert.Equal(t, metadata, ev.Metadata())

		final, ok := ev.(*EventFinal)
		require.True(t, ok)
		assert.Equal(t, "an answer", final.Text)
	})

	t.Run("error", func(t *testing.T) {
		b, err := json.Marshal(NewErrorEvent(metadata, errors.New("boom")))
		require.NoError(t, err)

		ev, err := NewEventFromJson(b)
		require.NoError(t, err)

		errEv, ok := ev.(*EventError)
		require.True(t, ok)
		assert.Equal(t, "boom", errEv.ErrorString)
	})

	t.Run("start", func(t *testing.T) {
		b, err := json.Marshal(NewStartEvent(metadata))
		require.NoError(t, err)

		ev, err := NewEventFromJson(b)
		require.NoError(t, err)
		assert.IsType(t, &EventStart{}, ev)
	})
}

func TestNewEventFromJsonRejectsUnknownType(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{"type":"telemetry","meta":{}}`))
	require.Error(t, err)
}
