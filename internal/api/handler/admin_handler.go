package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// Sweeper re-drives pending deposits on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// AdminHandler exposes operator actions on the deposit ledger.
type AdminHandler struct {
	balances ports.BalanceService
	sweeper  Sweeper
}

func NewAdminHandler(balances ports.BalanceService, sweeper Sweeper) *AdminHandler {
	return &AdminHandler{balances: balances, sweeper: sweeper}
}

// Redrive handles POST /v1/admin/deposits/:reference/redrive.
//
// @Summary      Retry crediting a pending deposit
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        reference  path      string  true  "Payment reference"
// @Success      200        {object}  depositResponse
// @Failure      403        {object}  errorResponse
// @Failure      404        {object}  errorResponse
// @Router       /v1/admin/deposits/{reference}/redrive [post]
func (h *AdminHandler) Redrive(c echo.Context) error {
	res, err := h.balances.Redrive(c.Request().Context(), c.Param("reference"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDepositResponse(res))
}

// Reconcile handles POST /v1/admin/reconcile: queues every stale pending
// deposit now instead of waiting for the next tick.
//
// @Summary      Run the deposit reconciler
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  acceptedResponse
// @Failure      403  {object}  errorResponse
// @Router       /v1/admin/reconcile [post]
func (h *AdminHandler) Reconcile(c echo.Context) error {
	n, err := h.sweeper.Sweep(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "pending deposits queued", Count: n})
}
