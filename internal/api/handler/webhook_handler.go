package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	paystackSignatureHeader = "X-Paystack-Signature"
	maxWebhookBody          = 1 << 20
	eventChargeSuccess      = "charge.success"
)

// DepositDispatcher is the interface the handler uses to enqueue deposit work.
type DepositDispatcher interface {
	TryEnqueue(job ports.DepositJob) bool
}

// SignatureVerifier checks that a webhook body was signed by the gateway.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// WebhookHandler receives the payment gateway's server-to-server calls.
type WebhookHandler struct {
	dispatcher DepositDispatcher
	verifier   SignatureVerifier
	payments   ports.PaymentService
}

// NewWebhookHandler creates a WebhookHandler backed by the given dispatcher.
func NewWebhookHandler(dispatcher DepositDispatcher, verifier SignatureVerifier, payments ports.PaymentService) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, verifier: verifier, payments: payments}
}

// Paystack handles POST /functions/paystack/webhook. A signed charge.success
// event queues a verification of its reference and returns 202; the credit
// itself happens on the dispatcher, serialized per user.
//
// @Summary      Paystack webhook
// @Tags         functions
// @Accept       json
// @Produce      json
// @Param        X-Paystack-Signature  header    string  true  "HMAC-SHA512 of the body"
// @Success      200                   {object}  acceptedResponse  "Event ignored"
// @Success      202                   {object}  acceptedResponse
// @Failure      400                   {object}  errorResponse
// @Failure      401                   {object}  errorResponse
// @Failure      503                   {object}  errorResponse  "Queue full"
// @Router       /functions/paystack/webhook [post]
func (h *WebhookHandler) Paystack(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if !h.verifier.VerifySignature(body, c.Request().Header.Get(paystackSignatureHeader)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}
	if !gjson.ValidBytes(body) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	event := gjson.GetBytes(body, "event").String()
	if event != eventChargeSuccess {
		return c.JSON(http.StatusOK, acceptedResponse{Message: "event ignored"})
	}
	reference := gjson.GetBytes(body, "data.reference").String()
	if reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reference is required")
	}

	queued := h.dispatcher.TryEnqueue(ports.DepositJob{
		Kind:      ports.JobVerifyPayment,
		UserID:    gjson.GetBytes(body, "data.metadata.user_id").String(),
		Reference: reference,
	})
	if !queued {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "deposit queue is full, retry later")
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "payment queued for verification", Count: 1})
}

// PaystackCallback handles GET /functions/paystack/callback, where the
// payment page sends the browser back. It verifies the reference right away
// and credits the owner named in the transaction metadata. The request is
// unauthenticated, so the response says only whether the payment went
// through.
//
// @Summary      Paystack redirect callback
// @Tags         functions
// @Produce      json
// @Param        reference  query     string  true  "Payment reference"
// @Success      200        {object}  messageResponse
// @Failure      402        {object}  errorResponse
// @Failure      502        {object}  errorResponse
// @Router       /functions/paystack/callback [get]
func (h *WebhookHandler) PaystackCallback(c echo.Context) error {
	var req verifyPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if _, err := h.payments.VerifyAndDeposit(c.Request().Context(), "", req.Reference); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Payment verified. Your balance has been updated."})
}
