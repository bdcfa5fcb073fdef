package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

func TestVerify_ConvertsKoboAndReadsMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/tx_ref_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":true,"data":{"status":"success","reference":"tx_ref_1","amount":2000000,
			"currency":"NGN","paid_at":"2024-05-01T10:00:00Z","customer":{"email":"a@b.co"},"metadata":{"user_id":"u1"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk_test", "", 0)
	v, err := c.Verify(context.Background(), "tx_ref_1")
	require.NoError(t, err)
	assert.Equal(t, "success", v.Status)
	assert.Equal(t, 20000.0, v.Amount)
	assert.Equal(t, "NGN", v.Currency)
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, "a@b.co", v.Email)
	assert.False(t, v.PaidAt.IsZero())
}

func TestInitialize_SendsKoboAndReference(t *testing.T) {
	var got initializeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://pay/abc","access_code":"abc","reference":"tx_ref_2"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "sk_test", "https://app/cb", 0)
	s, err := c.Initialize(context.Background(), ports.PaymentInit{
		Reference: "tx_ref_2", UserID: "u1", Email: "a@b.co", Amount: 150.5, Currency: "NGN",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay/abc", s.AuthorizationURL)
	assert.Equal(t, int64(15050), got.Amount)
	assert.Equal(t, "tx_ref_2", got.Reference)
	assert.Equal(t, "https://app/cb", got.CallbackURL)
	assert.Equal(t, "u1", got.Metadata["user_id"])
}

func TestVerifySignature(t *testing.T) {
	c := New("http://unused", "sk_test", "", 0)
	body := []byte(`{"event":"charge.success"}`)
	mac := hmac.New(sha512.New, []byte("sk_test"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.VerifySignature(body, sig))
	assert.False(t, c.VerifySignature(body, "00"))
	assert.False(t, c.VerifySignature([]byte(`{}`), sig))
}
