package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client 代表一个用户的WebSocket连接
// UserID: 用户ID
// Conn: WebSocket连接
// Send: 待发送的帧，由写协程消费
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager 管理在线用户的WebSocket连接，每个用户只保留最新的一个连接
type Manager struct {
	clients map[string]*Client
	lock    sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{clients: make(map[string]*Client)}
}

// AddClient 添加新连接，同一用户的旧连接被替换并关闭发送通道
func (m *Manager) AddClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if old, ok := m.clients[client.UserID]; ok && old != client {
		close(old.Send)
	}
	m.clients[client.UserID] = client
}

// RemoveClient 移除连接；连接已被替换时不做处理
func (m *Manager) RemoveClient(client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.clients[client.UserID]; ok && c == client {
		close(c.Send)
		delete(m.clients, client.UserID)
	}
}

// Deliver 向指定连接投递一帧，连接已失效或缓冲已满时返回 false
func (m *Manager) Deliver(client *Client, msg []byte) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.clients[client.UserID] != client {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// SendToUser 推送给用户当前的连接
func (m *Manager) SendToUser(userID string, msg []byte) bool {
	m.lock.RLock()
	client, ok := m.clients[userID]
	m.lock.RUnlock()
	if !ok {
		return false
	}
	return m.Deliver(client, msg)
}

// IsOnline 判断用户是否有连接
func (m *Manager) IsOnline(userID string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

// Count 在线连接数
func (m *Manager) Count() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.clients)
}
