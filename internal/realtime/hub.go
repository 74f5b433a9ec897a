// Package realtime 基于 WebSocket 的实时推送：客户端按主题（课表 ID）订阅，
// 服务端在评论变更时向该主题下的所有连接广播事件。
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// 事件类型
const (
	EventCommentCreated   = "comment.created"
	EventCommentDeleted   = "comment.deleted"
	EventTimetableSaved   = "timetable.saved"
	EventTimetableDeleted = "timetable.deleted"
)

// Event 推送给客户端的事件
type Event struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

// ErrHubClosed Hub 已停止
var ErrHubClosed = errors.New("realtime hub 已关闭")

type message struct {
	topic string
	data  []byte
}

// Hub 管理所有订阅连接，单 goroutine 串行处理注册、注销与广播
type Hub struct {
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}

	mu       sync.RWMutex
	counts   map[string]int
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub 创建 Hub；allowOrigins 为空时只允许同源连接
func NewHub(allowOrigins []string, logger *zap.Logger) *Hub {
	origins := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}

	h := &Hub{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		counts:     make(map[string]int),
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := origins[origin]; ok {
				return true
			}
			return strings.HasSuffix(origin, "://"+r.Host)
		},
	}
	return h
}

// Run 处理循环，ctx 取消后关闭所有连接并返回
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for topic, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, topic)
			}
			h.mu.Lock()
			h.counts = make(map[string]int)
			h.mu.Unlock()
			return

		case c := <-h.register:
			set := h.clients[c.topic]
			if set == nil {
				set = make(map[*client]struct{})
				h.clients[c.topic] = set
			}
			set[c] = struct{}{}
			h.setCount(c.topic, len(set))

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.topic] {
				select {
				case c.send <- msg.data:
				default:
					// 发送缓冲已满，视为慢客户端断开
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	set, ok := h.clients[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.topic)
	}
	h.setCount(c.topic, len(set))
}

func (h *Hub) setCount(topic string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n == 0 {
		delete(h.counts, topic)
		return
	}
	h.counts[topic] = n
}

// Subscribers 当前订阅某主题的连接数
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[topic]
}

// Publish 向主题广播事件；广播队列已满时丢弃并记录告警
func (h *Hub) Publish(topic, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{
		Type:    eventType,
		Topic:   topic,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("序列化推送事件失败", zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- message{topic: topic, data: data}:
	default:
		h.logger.Warn("推送队列已满，事件被丢弃", zap.String("topic", topic), zap.String("type", eventType))
	}
}

// Serve 将 HTTP 连接升级为 WebSocket 并订阅主题，阻塞直到连接关闭
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), topic: topic}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return ErrHubClosed
	}

	go c.writePump()
	c.readPump()
	return nil
}

// ── 单个连接 ──

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	topic string
}

// readPump 只用于感知断开和处理 pong，客户端消息被忽略
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("WebSocket 异常断开", zap.String("topic", c.topic), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
