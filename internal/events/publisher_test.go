package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatermillEventPublisher_Publish(t *testing.T) {
	logger := quietLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "attempts")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "attempts", logger)
	event := NewAttemptSubmittedEvent(AttemptSubmittedEvent{
		AttemptID:    "att-1",
		AssessmentID: "a1",
		StudentID:    "s1",
		ScorePercent: 40,
		Reason:       "expired",
	})
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventAttemptSubmitted), msg.Metadata.Get("event_type"))
		assert.Equal(t, "attempt-engine", msg.Metadata.Get("source"))

		var decoded struct {
			Type EventType             `json:"type"`
			Data AttemptSubmittedEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventAttemptSubmitted, decoded.Type)
		assert.Equal(t, 40, decoded.Data.ScorePercent)
		assert.Equal(t, "expired", decoded.Data.Reason)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	m := NewMockEventPublisher(quietLogger())
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, NewAttemptStartedEvent(AttemptStartedEvent{AttemptID: "a"})))
	require.NoError(t, m.Publish(ctx, NewManualGradingRequiredEvent(ManualGradingRequiredEvent{QuestionIDs: []string{"q1", "q2"}})))

	assert.Len(t, m.GetPublishedEvents(), 2)
	manual := m.EventsOfType(EventManualGradingRequired)
	require.Len(t, manual, 1)
	assert.Equal(t, 2, manual[0].Metadata["pending_count"])

	m.ClearEvents()
	assert.Empty(t, m.GetPublishedEvents())
}
