package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

func TestVerify_Google(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"sub":"g-1","email":"a@b.co","email_verified":true,"name":"Ada","picture":"https://p/1.png"}`))
	}))
	defer srv.Close()

	v := New(srv.URL, "http://unused", 0)
	p, err := v.Verify(context.Background(), domain.ProviderGoogle, "tok")
	require.NoError(t, err)
	assert.Equal(t, "g-1", p.Subject)
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "Ada", p.Name)
}

func TestVerify_Facebook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"id":"f-1","name":"Bo","email":"bo@x.io","picture":{"data":{"url":"https://p/2.png"}}}`))
	}))
	defer srv.Close()

	v := New("http://unused", srv.URL, 0)
	p, err := v.Verify(context.Background(), domain.ProviderFacebook, "tok")
	require.NoError(t, err)
	assert.Equal(t, "f-1", p.Subject)
	assert.Equal(t, "https://p/2.png", p.PictureURL)
	assert.True(t, p.EmailVerified)
}

func TestVerify_RejectedTokenIsInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := New(srv.URL, srv.URL, 0)
	_, err := v.Verify(context.Background(), domain.ProviderGoogle, "expired")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerify_EmptyTokenIsDismissedPopup(t *testing.T) {
	v := New("http://unused", "http://unused", 0)
	_, err := v.Verify(context.Background(), domain.ProviderGoogle, "")
	assert.ErrorIs(t, err, domain.ErrPopupDismissed)
}
