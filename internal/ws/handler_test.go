package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/auth"
	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

type staticVerifier map[string]string

func (v staticVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", auth.ErrInvalidToken
}

type recordingLifecycle struct {
	mu           sync.Mutex
	connected    []*Client
	disconnected chan *Client
}

func (l *recordingLifecycle) Connect(_ context.Context, c *Client) {
	l.mu.Lock()
	l.connected = append(l.connected, c)
	l.mu.Unlock()
	c.Transition(StateConnecting, StateJoined)
	c.Send("hello", map[string]string{"userId": c.UserID()})
}

func (l *recordingLifecycle) Disconnect(_ context.Context, c *Client) {
	c.Transition(StateJoined, StateDisconnected)
	c.Close()
	l.disconnected <- c
}

type echoEvents struct{}

func (echoEvents) HandleEvent(_ context.Context, c *Client, frame models.Frame) {
	c.Send("echo", frame)
}

func newTestServer(t *testing.T, users *mocks.UserRepositoryMock) (*httptest.Server, *recordingLifecycle) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	lifecycle := &recordingLifecycle{disconnected: make(chan *Client, 1)}
	h := NewHandler(staticVerifier{"good": "u1"}, users, lifecycle, echoEvents{}, 8, time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	r.GET("/chat", h.Namespace(models.ChatNamespace))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, lifecycle
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat" + query
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	srv, lifecycle := newTestServer(t, users)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=bad"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, lifecycle.connected)
	users.AssertNotCalled(t, "GetUserRef", mock.Anything, mock.Anything)
}

func TestHandshakeUnknownUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUserRef", mock.Anything, "u1").Return(nil, repositories.ErrUserNotFound)
	srv, _ := newTestServer(t, users)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeStoreFailure(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUserRef", mock.Anything, "u1").Return(nil, assert.AnError)
	srv, _ := newTestServer(t, users)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConnectionLifecycle(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUserRef", mock.Anything, "u1").Return(models.UserRef{ID: "u1", Name: "Ada"}, nil)
	srv, lifecycle := newTestServer(t, users)

	header := http.Header{"Authorization": []string{"Bearer good"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello models.Frame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Event)
	assert.JSONEq(t, `{"userId":"u1"}`, string(hello.Data))

	require.NoError(t, conn.WriteJSON(models.Frame{Event: "ping-room", Data: []byte(`{"chatroomId":"c1"}`)}))
	var echo models.Frame
	require.NoError(t, conn.ReadJSON(&echo))
	assert.Equal(t, "echo", echo.Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var rejected models.Frame
	require.NoError(t, conn.ReadJSON(&rejected))
	assert.Equal(t, models.EventError, rejected.Event)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case c := <-lifecycle.disconnected:
		assert.Equal(t, "Ada", c.User.Name)
		assert.Equal(t, StateDisconnected, c.State())
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not finalized")
	}
	_ = conn.Close()
}
