package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationID_OrderIndependent(t *testing.T) {
	pairs := [][2]uint{{1, 2}, {2, 1}, {10, 3}, {7, 7}, {100, 99}}
	for _, p := range pairs {
		assert.Equal(t, ConversationID(p[0], p[1]), ConversationID(p[1], p[0]))
	}
	assert.Equal(t, "3_10", ConversationID(10, 3))

	m := &Message{SenderID: 9, RecipientID: 4}
	assert.Equal(t, "4_9", m.ConversationID())
	assert.Equal(t, uint(4), m.Counterpart(9))
	assert.Equal(t, uint(9), m.Counterpart(4))
}
