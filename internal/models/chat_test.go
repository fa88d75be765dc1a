package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatroomParticipants(t *testing.T) {
	room := Chatroom{ID: "c1", Participants: []string{"u1", "u2", "u3"}}

	assert.True(t, room.Has("u2"))
	assert.False(t, room.Has("u4"))
	assert.False(t, Chatroom{}.Has(""))
	assert.Equal(t, []string{"u1", "u3"}, room.Others("u2"))
	assert.Equal(t, room.Participants, room.Others("u4"))
}
