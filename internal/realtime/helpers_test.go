package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/bus"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/ws"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// instance is one server process: its own registry and publish queue, joined
// to the others only through the shared bus.
type instance struct {
	registry *ws.Registry
	queue    *bus.Queue
	pusher   *Pusher
	presence *Presence
	ingest   *Ingest
	notify   *Notifications
}

type cluster struct {
	bus       *bus.MemoryBus
	chats     *mocks.ChatRepositoryMock
	users     *mocks.UserRepositoryMock
	store     *mocks.NotificationRepositoryMock
	delivery  *mocks.PushDeliveryMock
	instances []*instance
}

func newCluster(t *testing.T, size int) *cluster {
	t.Helper()
	cl := &cluster{
		bus:      bus.NewMemoryBus(discardLogger()),
		chats:    new(mocks.ChatRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		store:    new(mocks.NotificationRepositoryMock),
		delivery: new(mocks.PushDeliveryMock),
	}
	for i := 0; i < size; i++ {
		cl.instances = append(cl.instances, cl.newInstance(t))
	}
	return cl
}

func (cl *cluster) newInstance(t *testing.T) *instance {
	t.Helper()
	logger := discardLogger()
	registry := ws.NewRegistry()
	dispatcher := NewDispatcher(registry, logger)
	require.NoError(t, cl.bus.Subscribe(context.Background(), dispatcher.Handle))

	queue := bus.NewQueue(cl.bus, 128, time.Second, logger)
	t.Cleanup(func() { _ = queue.Close(context.Background()) })

	pusher := NewPusher(cl.delivery, time.Second, logger)
	return &instance{
		registry: registry,
		queue:    queue,
		pusher:   pusher,
		presence: NewPresence(registry, NewMembership(cl.chats, time.Second, logger), queue, logger),
		ingest:   NewIngest(cl.chats, queue, pusher, time.Second, logger),
		notify:   NewNotifications(cl.users, cl.store, queue, pusher, time.Second, logger),
	}
}

// rooms stubs the connect-time room lookup for each user.
func (cl *cluster) rooms(rooms ...models.Chatroom) {
	byUser := map[string][]models.Chatroom{}
	for _, room := range rooms {
		for _, userID := range room.Participants {
			byUser[userID] = append(byUser[userID], room)
		}
	}
	for userID, list := range byUser {
		cl.chats.On("RoomsForUser", mock.Anything, userID).Return(list, nil)
	}
}

// flush waits until every queued publish has been dispatched. Instances
// cannot publish afterwards.
func (cl *cluster) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, in := range cl.instances {
		require.NoError(t, in.queue.Close(ctx))
		require.NoError(t, in.pusher.Close(ctx))
	}
}

func (in *instance) connect(t *testing.T, ns models.Namespace, userID string) *ws.Client {
	t.Helper()
	c := ws.NewClient(nil, ns, models.UserRef{ID: userID, Name: userID}, ws.ConnInfo{}, 64)
	in.presence.Connect(context.Background(), c)
	return c
}

func (in *instance) send(c *ws.Client, event string, data any) {
	body, _ := json.Marshal(data)
	in.ingest.HandleEvent(context.Background(), c, models.Frame{Event: event, Data: body})
}

// drain returns the frames already queued for c.
func drain(t *testing.T, c *ws.Client) []models.Frame {
	t.Helper()
	var frames []models.Frame
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return frames
			}
			var f models.Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func only(frames []models.Frame, event string) []models.Frame {
	var out []models.Frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func decodeData[T any](t *testing.T, f models.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}
