package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chattersphere/internal/broadcast"
	"chattersphere/internal/domain"
	"chattersphere/internal/metrics"
)

const (
	streamKeepAlive = 15 * time.Second
	wsWriteWait     = 10 * time.Second
	wsPingPeriod    = 30 * time.Second
	streamBuffer    = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamHandler reenvia los eventos de entrega del broadcaster a clientes conectados.
type StreamHandler struct {
	logger      *zap.Logger
	broadcaster broadcast.Broadcaster
	topic       string
}

func NewStreamHandler(logger *zap.Logger, broadcaster broadcast.Broadcaster, topic string) *StreamHandler {
	if topic == "" {
		topic = broadcast.DefaultTopic
	}
	return &StreamHandler{logger: logger, broadcaster: broadcaster, topic: topic}
}

// StreamMessages maneja GET /messages/stream con Server-Sent Events.
// Emite un evento "message" por cada entrega de la conversacion pedida.
func (h *StreamHandler) StreamMessages(c *gin.Context) {
	senderID, receiverID, ok := pairFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing senderId or receiverId"})
		return
	}
	if !requireParticipant(c, senderID, receiverID) {
		return
	}
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming unavailable"})
		return
	}
	key := domain.ConversationKey(senderID, receiverID)

	events := make(chan domain.DeliveryEvent, streamBuffer)
	ctx := c.Request.Context()
	unsubscribe, err := h.broadcaster.Subscribe(ctx, h.topic, func(payload []byte) {
		ev, err := broadcast.DecodeEvent(payload)
		if err != nil || !ev.Matches(senderID, receiverID) {
			return
		}
		select {
		case events <- ev:
		default:
			h.logger.Warn("sse client too slow, dropping event", zap.String("conversation", key))
		}
	})
	if err != nil {
		h.logger.Error("subscribe stream failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming unavailable"})
		return
	}
	defer unsubscribe()

	gauge := metrics.StreamSubscribers.WithLabelValues("sse")
	gauge.Inc()
	defer gauge.Dec()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent("message", ev)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UTC()})
			return true
		}
	})
}

// EventsWS maneja GET /events/ws?userId=: reenvia por WebSocket los eventos crudos
// de toda conversacion en la que participa userId.
func (h *StreamHandler) EventsWS(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing userId"})
		return
	}
	if !requireParticipant(c, userID) {
		return
	}
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming unavailable"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Info("upgrade websocket failed", zap.Error(err))
		return
	}
	defer ws.Close()

	send := make(chan []byte, streamBuffer)
	unsubscribe, err := h.broadcaster.Subscribe(c.Request.Context(), h.topic, func(payload []byte) {
		ev, err := broadcast.DecodeEvent(payload)
		if err != nil || !ev.Includes(userID) {
			return
		}
		select {
		case send <- payload:
		default:
			h.logger.Warn("ws client too slow, dropping event", zap.String("user_id", userID))
		}
	})
	if err != nil {
		h.logger.Error("subscribe ws failed", zap.Error(err))
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(wsWriteWait))
		return
	}
	defer unsubscribe()

	gauge := metrics.StreamSubscribers.WithLabelValues("ws")
	gauge.Inc()
	defer gauge.Dec()

	// lectura solo para detectar el cierre del peer
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case payload := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Info("ws write failed", zap.Error(err), zap.String("user_id", userID))
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
