package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"
	"github.com/mthirumalai2905/clubly-community-hub/internal/service"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/jwt"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/logger"
	"github.com/mthirumalai2905/clubly-community-hub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// 客户端与服务端之间的帧类型
const (
	FrameChange         = "change"
	FrameConversations  = "conversations"
	FramePing           = "ping"
	FramePong           = "pong"
	FrameMarkThreadRead = "mark_thread_read"
	FrameError          = "error"
)

// Frame 推送给客户端的帧
type Frame struct {
	Type  string                `json:"type"`
	Event *realtime.ChangeEvent `json:"event,omitempty"`
	Data  interface{}           `json:"data,omitempty"`
}

// inbound 客户端发来的帧
type inbound struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id"`
}

// ThreadReader 客户端在会话中收到新消息时直接标记已读
type ThreadReader interface {
	MarkThreadRead(ctx context.Context, viewerID, partnerID string) (int64, error)
}

// Handler WebSocket接入：校验令牌，订阅与用户相关的变更并转发
// 断线期间的事件不补发，重连时会重新推送一次完整的会话列表
type Handler struct {
	jwt     *jwt.JWTService
	feed    realtime.Feed
	manager *Manager
	threads ThreadReader
	lister  service.MessageLister
	cfg     config.WebSocketConfig
}

// NewHandler 创建WebSocket处理器
// lister 为空时不推送会话列表，只转发变更事件
func NewHandler(jwtSvc *jwt.JWTService, feed realtime.Feed, manager *Manager, threads ThreadReader, lister service.MessageLister, cfg config.WebSocketConfig) *Handler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * cfg.PingInterval
	}
	return &Handler{jwt: jwtSvc, feed: feed, manager: manager, threads: threads, lister: lister, cfg: cfg}
}

// subscriptions 用户关心的表与过滤条件
func subscriptions(userID string) map[realtime.Table]realtime.Filter {
	involves := realtime.AnyOf(realtime.Eq("sender_id", userID), realtime.Eq("receiver_id", userID))
	return map[realtime.Table]realtime.Filter{
		realtime.TableDirectMessages: involves,
		realtime.TableFriendRequests: involves,
		realtime.TableNotifications:  realtime.Eq("user_id", userID),
		realtime.TableFriendships:    realtime.Eq("user_id", userID),
	}
}

// bearerProtocol 从 Sec-WebSocket-Protocol 中选出 "Bearer <token>" 形式的子协议
func bearerProtocol(r *http.Request) (protocol, token string) {
	for _, p := range websocket.Subprotocols(r) {
		if t := strings.TrimPrefix(p, "Bearer "); t != p && t != "" {
			return p, t
		}
	}
	return "", ""
}

// token 依次从 query、Bearer 子协议、Authorization 中读取
// 令牌来自子协议时返回选中的子协议，握手时原样回显
func token(c *gin.Context) (tokenString, protocol string) {
	if t := c.Query("token"); t != "" {
		return t, ""
	}
	if p, t := bearerProtocol(c.Request); t != "" {
		return t, p
	}
	t, _ := jwt.BearerToken(c)
	return t, ""
}

// Serve Gin路由处理函数
func (h *Handler) Serve(c *gin.Context) {
	tokenString, protocol := token(c)
	if tokenString == "" {
		response.Unauthorized(c, "缺少token")
		return
	}
	claims, err := h.jwt.ValidateToken(tokenString)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}
	userID := claims.Subject

	// 只回显选中的子协议，避免客户端提示 "Server sent no subprotocol"
	respHeader := http.Header{}
	if protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, h.cfg.SendBuffer),
	}
	h.manager.AddClient(client)
	logger.Info("WebSocket已连接", zap.String("user_id", userID))

	var subs []realtime.Subscription
	forward := realtime.Dedup(func(event realtime.ChangeEvent) {
		frame, err := json.Marshal(Frame{Type: FrameChange, Event: &event})
		if err != nil {
			return
		}
		if !h.manager.Deliver(client, frame) {
			logger.Warn("WebSocket发送缓冲已满，丢弃变更事件",
				zap.String("user_id", userID),
				zap.String("table", string(event.Table)),
			)
		}
	}, 0)
	for table, filter := range subscriptions(userID) {
		sub, err := h.feed.Subscribe(table, filter, forward)
		if err != nil {
			logger.Error("订阅变更失败", zap.String("user_id", userID), zap.String("table", string(table)), zap.Error(err))
			continue
		}
		subs = append(subs, sub)
	}

	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		h.manager.RemoveClient(client)
		logger.Info("WebSocket已断开", zap.String("user_id", userID))
	}()

	if h.lister != nil {
		watcher := service.NewConversationWatcher(h.lister, h.feed, userID)
		watcher.OnChange(func(summaries []service.ConversationSummary) {
			h.reply(client, Frame{Type: FrameConversations, Data: gin.H{
				"conversations": summaries,
				"total_unread":  service.TotalUnread(summaries),
			}})
		})
		if err := watcher.Start(c.Request.Context()); err != nil {
			logger.Error("会话列表初始化失败", zap.String("user_id", userID), zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	go h.writeLoop(client)
	h.readLoop(c.Request.Context(), client)
}

// writeLoop 写协程 + 定时发送ping心跳；发送通道关闭后关闭连接
func (h *Handler) writeLoop(client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// readLoop 读协程（接收心跳/客户端帧）。若超时未收到任何读事件则断开
func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var msg inbound
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case FramePing:
			h.reply(client, Frame{Type: FramePong})
		case FrameMarkThreadRead:
			if h.threads == nil {
				continue
			}
			n, err := h.threads.MarkThreadRead(context.WithoutCancel(ctx), client.UserID, msg.PartnerID)
			if err != nil {
				h.reply(client, Frame{Type: FrameError, Data: err.Error()})
				continue
			}
			h.reply(client, Frame{Type: FrameMarkThreadRead, Data: gin.H{"partner_id": msg.PartnerID, "marked": n}})
		}
	}
}

func (h *Handler) reply(client *Client, frame Frame) {
	if data, err := json.Marshal(frame); err == nil {
		h.manager.Deliver(client, data)
	}
}
