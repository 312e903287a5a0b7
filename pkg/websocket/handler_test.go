package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/model"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/internal/service"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThreads struct {
	mu    sync.Mutex
	calls [][2]string
}

func (f *fakeThreads) MarkThreadRead(_ context.Context, viewerID, partnerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{viewerID, partnerID})
	return 3, nil
}

type wsEnv struct {
	server  *httptest.Server
	bus     *realtime.Bus
	manager *Manager
	jwt     *jwt.JWTService
	threads *fakeThreads
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	return newWSEnvWith(t, nil)
}

func newWSEnvWith(t *testing.T, lister service.MessageLister) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &wsEnv{
		bus:     realtime.NewBus(),
		manager: NewManager(),
		jwt:     jwt.NewJWTService(config.JWTConfig{Secret: "secret", Issuer: "clubly-auth", ExpireTime: time.Hour}),
		threads: &fakeThreads{},
	}
	h := NewHandler(env.jwt, env.bus, env.manager, env.threads, lister, config.WebSocketConfig{PingInterval: time.Second, SendBuffer: 16})

	r := gin.New()
	r.GET("/ws", h.Serve)
	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

func (e *wsEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, nil)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return e.manager.IsOnline(userID) }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestServeRejectsMissingToken(t *testing.T) {
	env := newWSEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestServeForwardsOnlyUserEvents(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "alice")
	ctx := context.Background()

	require.Eventually(t, func() bool {
		return env.bus.SubscriberCount(realtime.TableDirectMessages) == 1 &&
			env.bus.SubscriberCount(realtime.TableNotifications) == 1
	}, time.Second, 5*time.Millisecond)

	other, err := realtime.NewChangeEvent(realtime.TableDirectMessages, realtime.EventInsert, map[string]interface{}{"id": 1, "sender_id": "bob", "receiver_id": "carol"})
	require.NoError(t, err)
	mine, err := realtime.NewChangeEvent(realtime.TableNotifications, realtime.EventInsert, map[string]interface{}{"id": 2, "user_id": "alice"})
	require.NoError(t, err)

	require.NoError(t, env.bus.Publish(ctx, other))
	require.NoError(t, env.bus.Publish(ctx, mine))
	require.NoError(t, env.bus.Publish(ctx, mine))

	f := readFrame(t, conn)
	assert.Equal(t, FrameChange, f.Type)
	require.NotNil(t, f.Event)
	assert.Equal(t, mine.ID, f.Event.ID)
	assert.Equal(t, realtime.TableNotifications, f.Event.Table)

	// 重复事件被丢弃，下一帧是 pong
	require.NoError(t, conn.WriteJSON(map[string]string{"type": FramePing}))
	assert.Equal(t, FramePong, readFrame(t, conn).Type)
}

func TestServeMarkThreadRead(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "alice")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": FrameMarkThreadRead, "partner_id": "bob"}))
	f := readFrame(t, conn)
	assert.Equal(t, FrameMarkThreadRead, f.Type)

	env.threads.mu.Lock()
	defer env.threads.mu.Unlock()
	assert.Equal(t, [][2]string{{"alice", "bob"}}, env.threads.calls)
}

func TestNewConnectionReplacesOld(t *testing.T) {
	env := newWSEnv(t)
	first := env.dial(t, "alice")
	_ = env.dial(t, "alice")

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	assert.Equal(t, 1, env.manager.Count())
}

func (e *wsEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
}

func TestServeIgnoresForeignSubprotocolWhenHeaderHasToken(t *testing.T) {
	env := newWSEnv(t)
	token, err := env.jwt.GenerateToken("alice", nil)
	require.NoError(t, err)

	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws"}, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(env.wsURL(), http.Header{"Authorization": []string{"Bearer " + token}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Empty(t, conn.Subprotocol())
	require.Eventually(t, func() bool { return env.manager.IsOnline("alice") }, time.Second, 5*time.Millisecond)
}

func TestServeEchoesOnlySelectedBearerSubprotocol(t *testing.T) {
	env := newWSEnv(t)
	token, err := env.jwt.GenerateToken("alice", nil)
	require.NoError(t, err)

	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws", "Bearer " + token}, HandshakeTimeout: 2 * time.Second}
	conn, resp, err := dialer.Dial(env.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.Equal(t, "Bearer "+token, conn.Subprotocol())
	assert.Equal(t, []string{"Bearer " + token}, resp.Header.Values("Sec-WebSocket-Protocol"))
	require.Eventually(t, func() bool { return env.manager.IsOnline("alice") }, time.Second, 5*time.Millisecond)
}

func TestServeRejectsNonBearerSubprotocolAlone(t *testing.T) {
	env := newWSEnv(t)

	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws"}, HandshakeTimeout: 2 * time.Second}
	_, resp, err := dialer.Dial(env.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type fakeLister struct {
	msgs []model.DirectMessage
}

func (f fakeLister) ListMessages(_ context.Context, _ string) ([]model.DirectMessage, error) {
	return f.msgs, nil
}

// nextConversations 跳过变更帧，返回下一条会话列表帧中的未读总数
func nextConversations(t *testing.T, conn *websocket.Conn) float64 {
	t.Helper()
	for i := 0; i < 4; i++ {
		f := readFrame(t, conn)
		if f.Type != FrameConversations {
			continue
		}
		data, ok := f.Data.(map[string]interface{})
		require.True(t, ok)
		total, ok := data["total_unread"].(float64)
		require.True(t, ok)
		return total
	}
	t.Fatal("no conversations frame received")
	return 0
}

func TestServePushesConversationSummaries(t *testing.T) {
	now := time.Now()
	env := newWSEnvWith(t, fakeLister{msgs: []model.DirectMessage{
		{ID: 1, SenderID: "bob", ReceiverID: "alice", Content: "hi", CreatedAt: now},
	}})
	conn := env.dial(t, "alice")

	assert.Equal(t, float64(1), nextConversations(t, conn))

	event, err := realtime.NewChangeEvent(realtime.TableDirectMessages, realtime.EventInsert,
		&model.DirectMessage{ID: 2, SenderID: "carol", ReceiverID: "alice", Content: "hey", CreatedAt: now.Add(time.Second)})
	require.NoError(t, err)
	require.NoError(t, env.bus.Publish(context.Background(), event))

	assert.Equal(t, float64(2), nextConversations(t, conn))
}
