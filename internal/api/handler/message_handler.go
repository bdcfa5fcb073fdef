package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

// MessageHandler serves product threads and the lobby chat.
type MessageHandler struct {
	service ports.MessageService
}

func NewMessageHandler(service ports.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// List handles GET /v1/messages.
//
// @Summary      Messages of a thread
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        product_id  query     string  false  "Product whose thread to read"
// @Param        thread      query     string  false  "Thread id, lobby by default"
// @Success      200         {object}  messagesResponse
// @Failure      400         {object}  errorResponse
// @Router       /v1/messages [get]
func (h *MessageHandler) List(c echo.Context) error {
	thread := threadParam(c)
	msgs, err := h.service.List(c.Request().Context(), thread)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messagesResponse{ThreadID: thread, Messages: msgs})
}

// Send handles POST /v1/messages. The text is sanitized before it is stored.
//
// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      sendMessageRequest  true  "Message"
// @Success      201   {object}  domain.Message
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/messages [post]
func (h *MessageHandler) Send(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.service.Send(c.Request().Context(), toSendMessageInput(req, s))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

// Stream upgrades to a websocket that receives the whole thread now and
// after every new message.
//
// @Summary      Thread stream (websocket)
// @Tags         messages
// @Security     BearerAuth
// @Param        product_id  query  string  false  "Product whose thread to follow"
// @Param        thread      query  string  false  "Thread id, lobby by default"
// @Success      101
// @Failure      400  {object}  errorResponse
// @Router       /v1/messages/stream [get]
func (h *MessageHandler) Stream(c echo.Context) error {
	thread := threadParam(c)
	return streamJSON(c,
		func(ctx context.Context) (<-chan []*domain.Message, error) {
			return h.service.Subscribe(ctx, thread)
		},
		func(msgs []*domain.Message) any { return messagesResponse{ThreadID: thread, Messages: msgs} },
		nil,
	)
}

// threadParam resolves ?product_id= to the product's thread and falls back
// to ?thread=, then the lobby.
func threadParam(c echo.Context) string {
	if pid := c.QueryParam("product_id"); pid != "" {
		return domain.ProductThread(pid)
	}
	if t := c.QueryParam("thread"); t != "" {
		return t
	}
	return domain.LobbyThread
}
