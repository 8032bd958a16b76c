package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chattersphere/internal/domain"
	"chattersphere/internal/metrics"
	"chattersphere/internal/service"
)

// ChatHandler expone el almacen de mensajes.
type ChatHandler struct {
	logger   *zap.Logger
	messages *service.MessageService
}

func NewChatHandler(logger *zap.Logger, messages *service.MessageService) *ChatHandler {
	return &ChatHandler{logger: logger, messages: messages}
}

// PostMessage maneja POST /messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		SenderID   string `json:"senderId"`
		ReceiverID string `json:"receiverId"`
		Message    string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.SenderID) == "" || strings.TrimSpace(req.ReceiverID) == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if !requireParticipant(c, req.SenderID) {
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), req.SenderID, req.ReceiverID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		default:
			h.logger.Error("save message failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}
	metrics.MessagesStored.Inc()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg.Public()})
}

// ListMessages maneja GET /messages?senderId=&receiverId=.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	senderID, receiverID, ok := pairFromQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing senderId or receiverId"})
		return
	}
	if !requireParticipant(c, senderID, receiverID) {
		return
	}

	msgs, err := h.messages.ListBetween(c.Request.Context(), senderID, receiverID)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	out := make([]domain.PublicMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Public())
	}
	c.JSON(http.StatusOK, out)
}

func pairFromQuery(c *gin.Context) (string, string, bool) {
	senderID := strings.TrimSpace(c.Query("senderId"))
	receiverID := strings.TrimSpace(c.Query("receiverId"))
	return senderID, receiverID, senderID != "" && receiverID != ""
}
