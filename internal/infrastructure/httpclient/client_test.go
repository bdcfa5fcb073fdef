package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

func TestNew_Independence(t *testing.T) {
	c1 := New("http://a", 0)
	c2 := New("http://b", 0)
	assert.NotSame(t, c1.Client, c2.Client)
	assert.Equal(t, "http://a", c1.BaseURL)
}

func TestCheckResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", 0)

	resp, err := c.R().Get("/ok")
	require.NoError(t, CheckResponse("ok", resp, err))

	resp, err = c.R().Get("/fail")
	err = CheckResponse("fail", resp, err)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRemote))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "upstream down", se.Body)
}
