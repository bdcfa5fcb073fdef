// Package httpclient is the shared outbound HTTP client of the remote
// adapters (price feed, payment gateway, chain node, SMS, mail, OAuth).
package httpclient

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

// Client embeds *resty.Client so adapters use its request builder directly.
type Client struct {
	*resty.Client
}

// New returns a client rooted at baseURL. A zero timeout means defaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{Client: c}
}

// CheckResponse converts a transport failure or a non-2xx response into an
// error wrapping domain.ErrRemote. op names the call for the error message.
func CheckResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrRemote, err)
	}
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > 256 {
		body = body[:256]
	}
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return &StatusError{Op: op, Code: resp.StatusCode(), Body: body}
}

// StatusError is a non-2xx response from a remote service.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return domain.ErrRemote }
