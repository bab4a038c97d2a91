package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Flowkit/internal/domain"
)

func TestOutcomeRoutingKey(t *testing.T) {
	assert.Equal(t, RoutingKey("task.completed"), OutcomeRoutingKey(string(domain.OutcomeCompleted)))
	assert.Equal(t, RoutingKey("task.error"), OutcomeRoutingKey(string(domain.OutcomeError)))
}

func TestNewMessage_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3*3600))
	payload := TaskOutcomePayload{
		TaskID:     "task-3",
		WorkflowID: "wf-1",
		Type:       "map",
		Outcome:    domain.OutcomeError,
		Error:      "boom",
		DurationMs: 12,
	}

	msg, err := NewMessage(MessageTypeTaskOutcome, payload, at)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())

	other, err := NewMessage(MessageTypeTaskOutcome, payload, at)
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, other.ID)

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var received Message
	require.NoError(t, json.Unmarshal(body, &received))
	assert.Equal(t, MessageTypeTaskOutcome, received.Type)

	decoded, err := Decode[TaskOutcomePayload](&received)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecode_Malformed(t *testing.T) {
	msg := &Message{Type: MessageTypeTaskOutcome, Payload: json.RawMessage(`"not an object"`)}
	_, err := Decode[TaskOutcomePayload](msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task.outcome")
}
