package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/auth"
	"realtime-service/internal/bus"
	"realtime-service/internal/config"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/push"
)

const testSecret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		ServiceName:      "realtime-service",
		Environment:      "development",
		BusDriver:        "memory",
		BusTopic:         "socket",
		StoreTimeout:     time.Second,
		PublishTimeout:   time.Second,
		PushTimeout:      time.Second,
		PublishQueueSize: 64,
		ClientBufferSize: 32,
		ShutdownTimeout:  time.Second,
	}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type testEnv struct {
	chats    *mocks.ChatRepositoryMock
	users    *mocks.UserRepositoryMock
	store    *mocks.NotificationRepositoryMock
	delivery *mocks.PushDeliveryMock
	servers  []*httptest.Server
}

// newTestEnv starts size instances that share one in-process bus.
func newTestEnv(t *testing.T, size int) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	shared := bus.NewMemoryBus(logger)
	env := &testEnv{
		chats:    new(mocks.ChatRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		store:    new(mocks.NotificationRepositoryMock),
		delivery: new(mocks.PushDeliveryMock),
	}
	env.delivery.On("Close").Return(nil).Maybe()

	for i := 0; i < size; i++ {
		a, err := Build(context.Background(), testConfig(), logger, Deps{
			Chats:         env.chats,
			Users:         env.users,
			Notifications: env.store,
			Bus:           shared,
			Push:          env.delivery,
			Verifier:      auth.NewHMACVerifier(testSecret),
		})
		require.NoError(t, err)
		srv := httptest.NewServer(a.Handler())
		t.Cleanup(func() {
			srv.Close()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = a.Shutdown(ctx)
		})
		env.servers = append(env.servers, srv)
	}
	return env
}

func (e *testEnv) user(id, name string) {
	e.users.On("GetUserRef", mock.Anything, id).Return(models.UserRef{ID: id, Name: name}, nil)
}

func (e *testEnv) dial(t *testing.T, instance int, ns models.Namespace, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.servers[instance].URL, "http") + string(ns) + "?token=" + token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips frames until event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) models.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f models.Frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func TestChatAcrossInstances(t *testing.T) {
	env := newTestEnv(t, 2)
	env.user("u1", "Ada")
	env.user("u2", "Bo")
	room := models.Chatroom{ID: "c1", Participants: []string{"u1", "u2"}}
	env.chats.On("RoomsForUser", mock.Anything, mock.Anything).Return([]models.Chatroom{room}, nil)
	env.chats.On("ParticipantsOf", mock.Anything, "c1").Return(room.Participants, nil)
	env.chats.On("AppendMessage", mock.Anything, "c1", models.UserRef{ID: "u1", Name: "Ada"}, "hi").
		Return(models.ChatroomMessage{ID: "m1", ChatroomID: "c1", Sender: models.UserRef{ID: "u1", Name: "Ada"}, Content: "hi", CreatedAt: time.Now().UTC()}, nil)
	env.delivery.On("NotifyUsers", mock.Anything, []string{"u2"}, mock.Anything).Return(nil)

	bo := env.dial(t, 1, models.ChatNamespace, "u2")
	readUntil(t, bo, models.EventOnlineStatuses)

	ada := env.dial(t, 0, models.ChatNamespace, "u1")
	online := readUntil(t, bo, models.EventBecomeOnline)
	assert.JSONEq(t, `{"userId":"u1","chatroomId":"c1"}`, string(online.Data))

	require.NoError(t, ada.WriteJSON(map[string]any{
		"event": models.EventSendMessage,
		"data":  map[string]string{"chatroomId": "c1", "message": "hi"},
	}))
	got := readUntil(t, bo, models.EventGetMessage)
	assert.Contains(t, string(got.Data), `"content":"hi"`)
	assert.Contains(t, string(got.Data), `"name":"Ada"`)

	require.NoError(t, ada.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	offline := readUntil(t, bo, models.EventBecomeOffline)
	assert.JSONEq(t, `{"userId":"u1","chatroomId":"c1"}`, string(offline.Data))
}

func TestNotificationReachesNotifyConnection(t *testing.T) {
	env := newTestEnv(t, 2)
	env.user("u1", "Ada")
	env.user("u2", "Bo")
	env.store.On("Create", mock.Anything, "u1", models.UserRef{ID: "u2", Name: "Bo"}, models.SentFriendRequest, (*string)(nil)).
		Return(models.Notification{ID: "n1", Sender: models.UserRef{ID: "u2", Name: "Bo"}, Type: models.SentFriendRequest}, nil)
	env.delivery.On("NotifyUsers", mock.Anything, []string{"u1"}, mock.MatchedBy(func(p push.Payload) bool {
		return p.Title == "New friend request!" && p.Body == "Bo has sent you a friend request."
	})).Return(nil)

	ada := env.dial(t, 1, models.NotifyNamespace, "u1")

	req, err := http.NewRequest(http.MethodPost, env.servers[0].URL+"/internal/notifications",
		strings.NewReader(`{"receiverId":"u1","type":"SENT_FRIEND_REQUEST"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "u2"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := readUntil(t, ada, models.EventGetNotification)
	assert.Contains(t, string(got.Data), `"id":"n1"`)
	assert.Contains(t, string(got.Data), `"type":"SENT_FRIEND_REQUEST"`)
}

func TestHandshakeAndInternalRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, 1)
	base := env.servers[0].URL

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/chat?token=nope", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	post, err := http.Post(base+"/internal/notifications", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, post.StatusCode)

	health, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	metrics, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(metrics.Body)
	metrics.Body.Close()
	assert.Contains(t, string(body), "realtime_http_requests_total")
}
