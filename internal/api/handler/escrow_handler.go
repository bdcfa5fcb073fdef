package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// EscrowHandler handles purchases held in escrow on chain.
type EscrowHandler struct {
	service ports.EscrowService
}

func NewEscrowHandler(service ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{service: service}
}

// Create handles POST /v1/escrows: debits the buyer and records the escrow
// on chain.
//
// @Summary      Buy a product through escrow
// @Tags         escrows
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createEscrowRequest  true  "Product to buy"
// @Success      201   {object}  domain.Escrow
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/escrows [post]
func (h *EscrowHandler) Create(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req createEscrowRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	e, err := h.service.Create(c.Request().Context(), s.UserID, req.ProductID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

// Confirm handles POST /v1/escrows/:id/confirm. Only the buyer may confirm.
//
// @Summary      Confirm delivery and release the escrow
// @Tags         escrows
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Escrow id"
// @Success      200  {object}  domain.Escrow
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/escrows/{id}/confirm [post]
func (h *EscrowHandler) Confirm(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	e, err := h.service.Confirm(c.Request().Context(), s.UserID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// List handles GET /v1/escrows: escrows where the user is buyer or seller.
//
// @Summary      My escrows
// @Tags         escrows
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  escrowsResponse
// @Router       /v1/escrows [get]
func (h *EscrowHandler) List(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	list, err := h.service.ListForUser(c.Request().Context(), s.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, escrowsResponse{Escrows: list})
}
