package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
	"realtime-service/internal/ws"
)

func TestConnectAnnouncesPresenceAcrossInstances(t *testing.T) {
	cl := newCluster(t, 2)
	a, b := cl.instances[0], cl.instances[1]
	cl.rooms(models.Chatroom{ID: "c1", Participants: []string{"u1", "u2"}})

	u2 := b.connect(t, models.ChatNamespace, "u2")
	u1 := a.connect(t, models.ChatNamespace, "u1")
	cl.flush(t)

	peerFrames := drain(t, u2)
	online := only(peerFrames, models.EventBecomeOnline)
	var fromU1 int
	for _, f := range online {
		if decodeData[models.PresencePayload](t, f) == (models.PresencePayload{UserID: "u1", ChatroomID: "c1"}) {
			fromU1++
		}
	}
	assert.Equal(t, 1, fromU1)

	// u2 lives on the other instance, so the connect-time snapshot is empty.
	statuses := only(drain(t, u1), models.EventOnlineStatuses)
	require.Len(t, statuses, 1)
	assert.Empty(t, decodeData[[]models.PresencePayload](t, statuses[0]))
	assert.Equal(t, ws.StateJoined, u1.State())
}

func TestOnlineStatusesListsLocalPeers(t *testing.T) {
	cl := newCluster(t, 1)
	a := cl.instances[0]
	cl.rooms(
		models.Chatroom{ID: "c1", Participants: []string{"u1", "u2"}},
		models.Chatroom{ID: "c2", Participants: []string{"u1", "u2", "u3"}},
	)

	a.connect(t, models.ChatNamespace, "u2")
	u1 := a.connect(t, models.ChatNamespace, "u1")
	cl.flush(t)

	statuses := only(drain(t, u1), models.EventOnlineStatuses)
	require.Len(t, statuses, 1)
	assert.ElementsMatch(t, []models.PresencePayload{
		{UserID: "u2", ChatroomID: "c1"},
		{UserID: "u2", ChatroomID: "c2"},
	}, decodeData[[]models.PresencePayload](t, statuses[0]))
}

func TestDisconnectPublishesOfflineOnce(t *testing.T) {
	cl := newCluster(t, 2)
	a, b := cl.instances[0], cl.instances[1]
	cl.rooms(models.Chatroom{ID: "c1", Participants: []string{"u1", "u2"}})

	u2 := b.connect(t, models.ChatNamespace, "u2")
	u1 := a.connect(t, models.ChatNamespace, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.presence.Disconnect(ctx, u1)
	a.presence.Disconnect(context.Background(), u1)
	cl.flush(t)

	offline := only(drain(t, u2), models.EventBecomeOffline)
	require.Len(t, offline, 1)
	assert.Equal(t, models.PresencePayload{UserID: "u1", ChatroomID: "c1"}, decodeData[models.PresencePayload](t, offline[0]))
	assert.Zero(t, a.registry.Count(models.ChatNamespace))
	assert.Equal(t, ws.StateDisconnected, u1.State())
}

func TestNotifyDisconnectProducesNoPresence(t *testing.T) {
	cl := newCluster(t, 1)
	a := cl.instances[0]
	cl.rooms(models.Chatroom{ID: "c1", Participants: []string{"u1", "u2"}})

	u2 := a.connect(t, models.ChatNamespace, "u2")
	n1 := a.connect(t, models.NotifyNamespace, "u1")
	assert.Equal(t, []string{"u1"}, n1.Rooms())

	a.presence.Disconnect(context.Background(), n1)
	cl.flush(t)

	frames := drain(t, u2)
	for _, f := range only(frames, models.EventBecomeOnline) {
		assert.NotEqual(t, "u1", decodeData[models.PresencePayload](t, f).UserID)
	}
	assert.Empty(t, only(frames, models.EventBecomeOffline))
	assert.Empty(t, drain(t, n1))
	cl.chats.AssertNotCalled(t, "RoomsForUser", mock.Anything, "u1")
}

func TestMembershipFailureJoinsZeroRooms(t *testing.T) {
	cl := newCluster(t, 1)
	a := cl.instances[0]
	cl.chats.On("RoomsForUser", mock.Anything, "u1").Return(nil, assert.AnError).Once()

	u1 := a.connect(t, models.ChatNamespace, "u1")
	cl.flush(t)

	assert.Equal(t, ws.StateJoined, u1.State())
	assert.Empty(t, u1.Rooms())
	assert.Equal(t, 1, a.registry.Count(models.ChatNamespace))

	frames := drain(t, u1)
	require.Len(t, frames, 1)
	assert.Equal(t, models.EventOnlineStatuses, frames[0].Event)
	cl.chats.AssertExpectations(t)
}

func TestDisconnectBeforeJoinSkipsPresence(t *testing.T) {
	cl := newCluster(t, 1)
	a := cl.instances[0]
	c := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u1"}, ws.ConnInfo{}, 4)
	a.registry.Register(c)
	a.registry.Join(c, "c1")

	a.presence.Disconnect(context.Background(), c)
	cl.flush(t)

	assert.Equal(t, ws.StateDisconnected, c.State())
	assert.Zero(t, a.registry.Count(models.ChatNamespace))
	assert.Empty(t, drain(t, c))
}

func TestFinalizedDuringConnectAnnouncesNothing(t *testing.T) {
	cl := newCluster(t, 2)
	a, b := cl.instances[0], cl.instances[1]
	cl.chats.On("RoomsForUser", mock.Anything, "u2").Return([]models.Chatroom{{ID: "c1", Participants: []string{"u1", "u2"}}}, nil)

	u2 := b.connect(t, models.ChatNamespace, "u2")

	u1 := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u1", Name: "u1"}, ws.ConnInfo{}, 8)
	cl.chats.On("RoomsForUser", mock.Anything, "u1").
		Run(func(mock.Arguments) { a.presence.Disconnect(context.Background(), u1) }).
		Return([]models.Chatroom{{ID: "c1", Participants: []string{"u1", "u2"}}}, nil)

	a.presence.Connect(context.Background(), u1)
	cl.flush(t)

	assert.Equal(t, ws.StateDisconnected, u1.State())
	assert.Zero(t, a.registry.Count(models.ChatNamespace))
	for _, f := range only(drain(t, u2), models.EventBecomeOnline) {
		assert.NotEqual(t, "u1", decodeData[models.PresencePayload](t, f).UserID)
	}
}

func TestConnectAfterDisconnectIsIgnored(t *testing.T) {
	cl := newCluster(t, 1)
	a := cl.instances[0]
	c := ws.NewClient(nil, models.ChatNamespace, models.UserRef{ID: "u1"}, ws.ConnInfo{}, 4)

	a.presence.Disconnect(context.Background(), c)
	a.presence.Connect(context.Background(), c)
	cl.flush(t)

	assert.Zero(t, a.registry.Count(models.ChatNamespace))
	cl.chats.AssertNotCalled(t, "RoomsForUser", mock.Anything, "u1")
}
