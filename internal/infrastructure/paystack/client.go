// Package paystack talks to the Paystack transaction API.
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
	"github.com/suiichiba/marketplace/internal/infrastructure/httpclient"
)

// koboPerNaira converts between the API's minor units and naira.
const koboPerNaira = 100

// Client implements ports.PaymentGateway.
type Client struct {
	http        *httpclient.Client
	secretKey   string
	callbackURL string
}

func New(baseURL, secretKey, callbackURL string, timeout time.Duration) *Client {
	c := httpclient.New(baseURL, timeout)
	c.SetAuthToken(secretKey)
	return &Client{http: c, secretKey: secretKey, callbackURL: callbackURL}
}

type initializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency,omitempty"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (c *Client) Initialize(ctx context.Context, in ports.PaymentInit) (*ports.PaymentSession, error) {
	req := initializeRequest{
		Email:       in.Email,
		Amount:      int64(math.Round(in.Amount * koboPerNaira)),
		Currency:    in.Currency,
		Reference:   in.Reference,
		CallbackURL: c.callbackURL,
	}
	if in.UserID != "" {
		req.Metadata = map[string]any{"user_id": in.UserID}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/transaction/initialize")
	if err := httpclient.CheckResponse("paystack initialize", resp, err); err != nil {
		return nil, err
	}

	body := resp.Body()
	if !gjson.GetBytes(body, "status").Bool() {
		return nil, fmt.Errorf("paystack initialize: %w: %s", domain.ErrRemote, gjson.GetBytes(body, "message").String())
	}
	return &ports.PaymentSession{
		Reference:        gjson.GetBytes(body, "data.reference").String(),
		AuthorizationURL: gjson.GetBytes(body, "data.authorization_url").String(),
		AccessCode:       gjson.GetBytes(body, "data.access_code").String(),
	}, nil
}

// Verify returns the transaction's current state. Amounts are converted from
// kobo to naira.
func (c *Client) Verify(ctx context.Context, reference string) (*ports.PaymentVerification, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/transaction/verify/" + url.PathEscape(reference))
	if err := httpclient.CheckResponse("paystack verify", resp, err); err != nil {
		return nil, err
	}

	body := resp.Body()
	if !gjson.GetBytes(body, "status").Bool() {
		return nil, fmt.Errorf("paystack verify: %w: %s", domain.ErrRemote, gjson.GetBytes(body, "message").String())
	}

	data := gjson.GetBytes(body, "data")
	v := &ports.PaymentVerification{
		Reference: data.Get("reference").String(),
		Status:    data.Get("status").String(),
		Amount:    data.Get("amount").Float() / koboPerNaira,
		Currency:  data.Get("currency").String(),
		Email:     data.Get("customer.email").String(),
		UserID:    data.Get("metadata.user_id").String(),
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	if paid := data.Get("paid_at").String(); paid != "" {
		if t, err := time.Parse(time.RFC3339, paid); err == nil {
			v.PaidAt = t
		}
	}
	return v, nil
}

// VerifySignature checks the X-Paystack-Signature header of a webhook body:
// hex(HMAC-SHA512(secret key, body)).
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.secretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
