// Package notify 通过 WebSocket 向在线玩家推送通知
package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// 写入超时时间
	writeWait = 10 * time.Second

	// 读取超时时间
	pongWait = 60 * time.Second

	// 发送 ping 的间隔时间
	pingPeriod = (pongWait * 9) / 10

	// 客户端只发送控制帧，消息上限很小
	maxMessageSize = 4 * 1024

	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有跨域请求，来源由网关的 CORS 配置约束
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message 推送消息结构
type Message struct {
	Type    string    `json:"type"`
	Player  string    `json:"player"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// client 一个在线连接
type client struct {
	id     string
	player string
	send   chan []byte
}

// Hub 按玩家名管理在线连接，同一玩家可有多个连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*client
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[string]*client)}
}

// Online 玩家当前的连接数
func (h *Hub) Online(player string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[player])
}

// Publish 向玩家的所有连接推送通知，离线时直接丢弃
// 通知同时保存在玩家记录中，推送只是即时提醒
func (h *Hub) Publish(player, message string) {
	data, err := json.Marshal(Message{
		Type:    "notification",
		Player:  player,
		Message: message,
		SentAt:  time.Now(),
	})
	if err != nil {
		log.Printf("序列化通知失败: %v", err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients[player] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// 通道已满，关闭连接
	for _, c := range slow {
		h.remove(c)
	}
}

// ServeWS 升级连接并登记到玩家名下，调用方负责认证
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, player string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	c := &client{
		id:     uuid.New().String(),
		player: player,
		send:   make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	if h.clients[player] == nil {
		h.clients[player] = make(map[string]*client)
	}
	h.clients[player][c.id] = c
	h.mu.Unlock()

	log.Printf("玩家 %s 已连接通知通道 (%s)", player, c.id)

	go h.readPump(conn, c)
	go h.writePump(conn, c)
}

// Close 断开全部连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for player, conns := range h.clients {
		for _, c := range conns {
			close(c.send)
		}
		delete(h.clients, player)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 检查连接是否已关闭
	conns, ok := h.clients[c.player]
	if !ok {
		return
	}
	if _, ok := conns[c.id]; !ok {
		return
	}
	close(c.send)
	delete(conns, c.id)
	if len(conns) == 0 {
		delete(h.clients, c.player)
	}
	log.Printf("玩家 %s 已断开通知通道 (%s)", c.player, c.id)
}

// readPump 只处理控制帧，读取失败即断开
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.remove(c)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket错误: %v", err)
			}
			return
		}
	}
}

// writePump 向WebSocket写入数据，每条通知单独成帧
func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
