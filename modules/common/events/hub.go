package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
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

// Event - 생성 파이프라인 진행 상황 메시지
type Event struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId"`
	Stage     string      `json:"stage,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event types
const (
	TypeStage     = "stage"
	TypeCompleted = "completed"
	TypeFailed    = "failed"
)

// client - 연결된 WebSocket 클라이언트
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Metrics - 허브 연결 통계
type Metrics struct {
	TotalConnections int       `json:"totalConnections"`
	ActiveUsers      int       `json:"activeUsers"`
	ActiveClients    int       `json:"activeClients"`
	StartTime        time.Time `json:"startTime"`
}

// Hub - 사용자별 WebSocket 구독자 관리
type Hub struct {
	clients  map[string]map[string]*client
	mutex    sync.RWMutex
	upgrader websocket.Upgrader
	logger   *zap.Logger

	totalConnections int
	startTime        time.Time
}

// NewHub - Hub 생성, allowedOrigin 이 "*" 또는 빈 값이면 모든 origin 허용
func NewHub(allowedOrigin string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:   make(map[string]map[string]*client),
		logger:    logger,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return h
}

// ServeWS - 인증된 사용자 연결을 업그레이드하고 읽기/쓰기 루프 시작
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[Events] WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}
	h.addClient(c)

	go c.writePump()
	go c.readPump()
}

// Publish - 해당 사용자의 모든 연결에 이벤트 전송, 버퍼가 찬 클라이언트는 건너뜀
func (h *Hub) Publish(userID string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("[Events] Failed to marshal event", zap.Error(err))
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, c := range h.clients[userID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("[Events] Client buffer full, dropping event",
				zap.String("user_id", userID), zap.String("client_id", c.id))
		}
	}
}

// ClientCount - 사용자의 현재 연결 수
func (h *Hub) ClientCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID])
}

// Metrics - 현재 통계
func (h *Hub) Metrics() Metrics {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	active := 0
	for _, set := range h.clients {
		active += len(set)
	}
	return Metrics{
		TotalConnections: h.totalConnections,
		ActiveUsers:      len(h.clients),
		ActiveClients:    active,
		StartTime:        h.startTime,
	}
}

// Close - 모든 연결 종료
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, set := range h.clients {
		for id, c := range set {
			close(c.send)
			delete(set, id)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) addClient(c *client) {
	h.mutex.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[string]*client)
		h.clients[c.userID] = set
	}
	set[c.id] = c
	h.totalConnections++
	count := len(set)
	h.mutex.Unlock()

	h.logger.Info("🔌 [Events] Client connected",
		zap.String("user_id", c.userID), zap.String("client_id", c.id), zap.Int("connections", count))
}

// removeClient - 연결 제거, 마지막 연결이면 사용자 항목도 삭제
func (h *Hub) removeClient(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, exists := set[c.id]; !exists {
		return
	}
	delete(set, c.id)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}

	h.logger.Info("👋 [Events] Client disconnected",
		zap.String("user_id", c.userID), zap.String("client_id", c.id))
}

// readPump - 클라이언트 메시지는 무시하고 연결 상태(pong/close)만 추적
func (c *client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("[Events] WebSocket error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

// writePump - send 채널을 연결로 흘려보내고 주기적으로 ping
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("[Events] WebSocket write error", zap.String("user_id", c.userID), zap.Error(err))
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
