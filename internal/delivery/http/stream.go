package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

const (
	pingInterval = 25 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 10 * time.Second
	frameTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // CORS middleware already filters browser origins
}

// streamMessage is a client frame
type streamMessage struct {
	Type      string          `json:"type"`
	Data      string          `json:"data"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// streamReply is a server reply; Detection or Error is set depending on Type
type streamReply struct {
	Type      string                        `json:"type"`
	Timestamp json.RawMessage               `json:"timestamp,omitempty"`
	Detection *domain.ProduceClassification `json:"detection,omitempty"`
	Error     string                        `json:"error,omitempty"`
}

// Stream classifies camera frames sent over a WebSocket, one at a time per connection
func (h *Handler) Stream(c *gin.Context) {
	if h.produce == nil || h.images == nil {
		notConfigured(c, "classification")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// base64 inflates frames by a third, plus JSON framing
	conn.SetReadLimit(h.images.MaxBytes() * 2)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go keepAlive(ctx, conn)

	h.logger.Debug("stream connected", zap.String("client_ip", c.ClientIP()))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("stream closed", zap.Error(err))
			}
			return
		}

		var reply streamReply
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = streamReply{Type: "error", Error: "invalid message: " + err.Error()}
		} else {
			reply = h.handleFrame(ctx, &msg)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, msg *streamMessage) streamReply {
	if msg.Type != "frame" {
		return streamReply{Type: "error", Timestamp: msg.Timestamp, Error: "unsupported message type: " + msg.Type}
	}

	ctx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	image, err := h.images.Load(ctx, msg.Data, "")
	if err != nil {
		return streamReply{Type: "error", Timestamp: msg.Timestamp, Error: err.Error()}
	}

	detection, err := h.produce.Classify(ctx, image)
	if err != nil {
		return streamReply{Type: "error", Timestamp: msg.Timestamp, Error: err.Error()}
	}
	return streamReply{Type: "detection", Timestamp: msg.Timestamp, Detection: detection}
}

// keepAlive pings until ctx ends. WriteControl is safe alongside the read/write loop.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
