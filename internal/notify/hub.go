// Package notify 通过 WebSocket 向已登录的控制台推送保存/恢复事件，前端据此刷新表格。
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type EventType string

const (
	EventSaved     EventType = "saved"
	EventRestored  EventType = "restored"
	EventMarkSafe  EventType = "safe"
	EventAdminsSet EventType = "admins"
)

// Event 是推送给前端的一条变更。Target 为存储路径前缀，例如 marketplace/WordSplash。
type Event struct {
	Type   EventType `json:"type"`
	Target string    `json:"target"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

type client struct {
	conn    *websocket.Conn
	actor   string
	send    chan []byte
	release func()
}

// Hub 维护连接并广播事件。Run 退出后 Publish 变为空操作。
type Hub struct {
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}

	// Track 在连接建立时调用，返回的函数在连接结束时调用。
	Track func() func()
}

// NewHub 创建 Hub。checkOrigin 为空时只接受同源请求。
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 客户端消费太慢，直接断开。
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients 返回当前连接数。
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish 广播事件，不阻塞调用方。
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("序列化推送事件失败", "err", err)
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- msg:
	default:
		slog.Warn("推送队列已满，事件被丢弃", "type", ev.Type, "target", ev.Target)
	}
}

// ServeWS 升级连接并注册客户端；actor 只用于日志。release 在连接结束（或建立失败）时调用，可为 nil。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, actor string, release func()) error {
	if release == nil {
		release = func() {}
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		return err
	}
	c := &client{conn: conn, actor: actor, send: make(chan []byte, sendBuffer), release: release}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		release()
		return nil
	}
	if h.Track != nil {
		untrack := h.Track()
		c.release = func() {
			untrack()
			release()
		}
	}
	slog.Debug("推送连接已建立", "actor", actor)
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// readPump 只处理 pong 与关闭；客户端发来的消息被忽略。
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
		c.release()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("推送连接异常关闭", "actor", c.actor, "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
