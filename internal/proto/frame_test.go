package proto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEvent(t *testing.T) {
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := struct {
		ID      uint   `json:"id"`
		Content string `json:"content"`
	}{ID: 7, Content: "hi"}

	b, err := EncodeEvent(Event{Type: EventMessageNew, Data: payload}, sentAt)
	require.NoError(t, err)

	eventType, data, gotAt, err := DecodeEvent(b)
	require.NoError(t, err)
	assert.Equal(t, EventMessageNew, eventType)
	assert.Equal(t, float64(7), data["id"])
	assert.Equal(t, "hi", data["content"])
	assert.True(t, sentAt.Equal(gotAt))
}

func TestEncodeEvent_RequiresType(t *testing.T) {
	_, err := EncodeEvent(Event{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestClientFrameRoundTrip(t *testing.T) {
	reply := uint(3)
	b, err := EncodeClientFrame(ClientFrame{Type: FrameMessageSend, RecipientID: 42, Content: "yo", ReplyToID: &reply})
	require.NoError(t, err)

	f, err := DecodeClientFrame(b)
	require.NoError(t, err)
	assert.Equal(t, FrameMessageSend, f.Type)
	assert.Equal(t, uint(42), f.RecipientID)
	assert.Equal(t, "yo", f.Content)
	require.NotNil(t, f.ReplyToID)
	assert.Equal(t, uint(3), *f.ReplyToID)
}

func TestDecodeClientFrame_Garbage(t *testing.T) {
	_, err := DecodeClientFrame([]byte{0xff, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidFrame)

	b, err := FromJSON([]byte(`{"recipient_id": 1}`))
	require.NoError(t, err)
	_, err = DecodeClientFrame(b)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}
