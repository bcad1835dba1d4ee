package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/models"
)

const streamWriteWait = 10 * time.Second

// TicketHandler serves the post-purchase chat.
type TicketHandler struct {
	tickets  core.TicketService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewTicketHandler creates a new TicketHandler. Websocket upgrades are
// accepted from the comma-separated clientURL origins only.
func NewTicketHandler(tickets core.TicketService, clientURL string, logger *zap.Logger) *TicketHandler {
	allowed := map[string]bool{}
	for _, o := range strings.Split(clientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return &TicketHandler{
		tickets: tickets,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		logger: logger,
	}
}

func (h *TicketHandler) List(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	tickets, err := h.tickets.List(c.Request.Context(), user)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// Get opens a ticket and clears the caller's unread counter.
func (h *TicketHandler) Get(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	view, err := h.tickets.Open(c.Request.Context(), user, c.Param("ticketId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TicketHandler) SendMessage(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	msg, err := h.tickets.SendMessage(c.Request.Context(), user, c.Param("ticketId"), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Renew starts a renewal checkout for the ticket's subscription.
func (h *TicketHandler) Renew(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	result, err := h.tickets.StartRenewal(c.Request.Context(), user, c.Param("ticketId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Stream upgrades to a websocket and pushes the full message list on every
// change until either side goes away.
func (h *TicketHandler) Stream(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	ticketID := c.Param("ticketId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("ticketId", ticketID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Incoming frames are ignored; reading detects the client closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.tickets.Stream(ctx, user, ticketID, func(msgs []*models.ChatMessage) {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(gin.H{"messages": msgs}); err != nil {
			h.logger.Debug("Websocket write failed", zap.String("ticketId", ticketID), zap.Error(err))
			cancel()
		}
	})
	if err == nil || errors.Is(err, context.Canceled) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return
	}

	code := websocket.CloseInternalServerErr
	reason := "stream failed"
	if errors.Is(err, core.ErrTicketNotFound) {
		code, reason = websocket.ClosePolicyViolation, core.ErrTicketNotFound.Error()
	} else {
		h.logger.Error("Ticket stream failed", zap.String("ticketId", ticketID), zap.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
