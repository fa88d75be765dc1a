package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
	"realtime-service/internal/ws"
)

func TestDispatcherDeliversToRoomOnly(t *testing.T) {
	registry := ws.NewRegistry()
	d := NewDispatcher(registry, discardLogger())

	inRoom := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u1"}, ws.ConnInfo{}, 4)
	elsewhere := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u2"}, ws.ConnInfo{}, 4)
	sameRoomOtherNS := ws.NewClient(nil, models.NotifyNamespace, models.UserRef{ID: "c1"}, ws.ConnInfo{}, 4)
	for _, c := range []*ws.Client{inRoom, elsewhere, sameRoomOtherNS} {
		registry.Register(c)
	}
	registry.Join(inRoom, "c1")
	registry.Join(elsewhere, "c2")
	registry.Join(sameRoomOtherNS, "c1")

	evt, err := models.NewBroadcastEvent(models.ChatNamespace, "c1", models.TopicTyping,
		models.TypingPayload{ChatroomID: "c1", UserID: "u3", Typing: true})
	require.NoError(t, err)
	d.Handle(context.Background(), evt)

	frames := drain(t, inRoom)
	require.Len(t, frames, 1)
	assert.Equal(t, models.EventGetChatroomTyping, frames[0].Event)
	assert.Equal(t, models.TypingPayload{ChatroomID: "c1", UserID: "u3", Typing: true}, decodeData[models.TypingPayload](t, frames[0]))
	assert.Empty(t, drain(t, elsewhere))
	assert.Empty(t, drain(t, sameRoomOtherNS))
}

func TestDispatcherClosesSlowConsumer(t *testing.T) {
	registry := ws.NewRegistry()
	d := NewDispatcher(registry, discardLogger())

	slow := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u1"}, ws.ConnInfo{}, 1)
	fast := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u2"}, ws.ConnInfo{}, 8)
	registry.Register(slow)
	registry.Register(fast)
	registry.Join(slow, "c1")
	registry.Join(fast, "c1")

	for _, typing := range []bool{true, false, true} {
		evt, err := models.NewBroadcastEvent(models.ChatNamespace, "c1", models.TopicTyping,
			models.TypingPayload{ChatroomID: "c1", UserID: "u3", Typing: typing})
		require.NoError(t, err)
		d.Handle(context.Background(), evt)
	}

	assert.Len(t, drain(t, fast), 3)
	assert.Len(t, drain(t, slow), 1)
	assert.False(t, slow.Deliver([]byte(`{}`)))
}

func TestDispatcherIgnoresUnknownTopic(t *testing.T) {
	registry := ws.NewRegistry()
	d := NewDispatcher(registry, discardLogger())
	c := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u1"}, ws.ConnInfo{}, 4)
	registry.Register(c)
	registry.Join(c, "c1")

	d.Handle(context.Background(), models.BroadcastEvent{Namespace: models.ChatNamespace, Room: "c1", Topic: "unknown", Payload: []byte(`{}`)})
	assert.Empty(t, drain(t, c))
}
