package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

func TestSMS_PostsMessage(t *testing.T) {
	var got smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewSMS(srv.URL, "key", "SuiIchiba", 0).SendSMS(context.Background(), "+2348012345678", "code 123456")
	require.NoError(t, err)
	assert.Equal(t, smsRequest{To: "+2348012345678", From: "SuiIchiba", Text: "code 123456"}, got)
}

func TestMail_GatewayErrorIsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewMail(srv.URL, "key", "no-reply@x.io", 0).SendMail(context.Background(), "a@b.co", "hi", "body")
	assert.ErrorIs(t, err, domain.ErrRemote)
}

func TestLog_WritesInsteadOfSending(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf))

	require.NoError(t, l.SendMail(context.Background(), "a@b.co", "Reset", "link"))
	assert.Contains(t, buf.String(), `"to":"a@b.co"`)
	assert.Contains(t, buf.String(), `"component":"notify"`)
}
