package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// PaymentHandler covers funding the balance: card payments through the
// gateway, transfers from the user's Sui wallet, and the deposit ledger.
type PaymentHandler struct {
	payments  ports.PaymentService
	balances  ports.BalanceService
	converter ports.Converter
}

func NewPaymentHandler(payments ports.PaymentService, balances ports.BalanceService, converter ports.Converter) *PaymentHandler {
	return &PaymentHandler{payments: payments, balances: balances, converter: converter}
}

// Initialize handles POST /v1/payments/initialize.
//
// @Summary      Open a card payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      initializePaymentRequest  true  "Amount in NGN"
// @Success      201   {object}  ports.PaymentSession
// @Failure      400   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/payments/initialize [post]
func (h *PaymentHandler) Initialize(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req initializePaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ps, err := h.payments.Initialize(c.Request().Context(), s.UserID, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ps)
}

// Verify handles POST /v1/payments/verify: checks the reference with the
// gateway and credits the balance once.
//
// @Summary      Verify a card payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      verifyPaymentRequest  true  "Payment reference"
// @Success      200   {object}  depositResponse
// @Failure      402   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/payments/verify [post]
func (h *PaymentHandler) Verify(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req verifyPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.payments.VerifyAndDeposit(c.Request().Context(), s.UserID, req.Reference)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDepositResponse(res))
}

// WalletDeposit handles POST /v1/payments/wallet.
//
// @Summary      Deposit SUI from the linked wallet
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      walletDepositRequest  true  "Amount in SUI"
// @Success      200   {object}  depositResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/payments/wallet [post]
func (h *PaymentHandler) WalletDeposit(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req walletDepositRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.payments.WalletDeposit(c.Request().Context(), s.UserID, req.AmountSui)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDepositResponse(res))
}

// Deposits handles GET /v1/deposits.
//
// @Summary      My deposit ledger
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  depositsResponse
// @Router       /v1/deposits [get]
func (h *PaymentHandler) Deposits(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	list, err := h.balances.ListDeposits(c.Request().Context(), s.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, depositsResponse{Deposits: list})
}

// Convert handles GET /v1/conversions.
//
// @Summary      Price an amount in SUI
// @Tags         payments
// @Produce      json
// @Param        amount    query     number  true  "Amount"
// @Param        currency  query     string  true  "Currency code, e.g. ngn"
// @Success      200       {object}  ports.Conversion
// @Failure      400       {object}  errorResponse
// @Failure      503       {object}  errorResponse
// @Router       /v1/conversions [get]
func (h *PaymentHandler) Convert(c echo.Context) error {
	var req convertRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	conv, err := h.converter.ConvertToSui(c.Request().Context(), req.Amount, req.Currency)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conv)
}
