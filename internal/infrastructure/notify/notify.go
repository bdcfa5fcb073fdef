// Package notify delivers one-time passwords by SMS and account links by
// mail through HTTP gateways.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/infrastructure/httpclient"
)

// SMS posts messages to an SMS gateway.
type SMS struct {
	http     *httpclient.Client
	senderID string
}

func NewSMS(baseURL, apiKey, senderID string, timeout time.Duration) *SMS {
	c := httpclient.New(baseURL, timeout)
	c.SetAuthToken(apiKey)
	return &SMS{http: c, senderID: senderID}
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

func (s *SMS) SendSMS(ctx context.Context, phone, text string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(smsRequest{To: phone, From: s.senderID, Text: text}).
		Post("/messages")
	return httpclient.CheckResponse("send sms", resp, err)
}

// Mail posts messages to a transactional mail API.
type Mail struct {
	http *httpclient.Client
	from string
}

func NewMail(baseURL, apiKey, from string, timeout time.Duration) *Mail {
	c := httpclient.New(baseURL, timeout)
	c.SetAuthToken(apiKey)
	return &Mail{http: c, from: from}
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (m *Mail) SendMail(ctx context.Context, to, subject, body string) error {
	resp, err := m.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mailRequest{From: m.from, To: to, Subject: subject, Text: body}).
		Post("/send")
	return httpclient.CheckResponse("send mail", resp, err)
}

// Log writes outgoing messages to the logger instead of delivering them.
// It stands in for both gateways when none is configured.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "notify").Logger()}
}

func (l *Log) SendSMS(_ context.Context, phone, text string) error {
	l.log.Info().Str("to", phone).Str("text", text).Msg("sms not delivered: no gateway configured")
	return nil
}

func (l *Log) SendMail(_ context.Context, to, subject, body string) error {
	l.log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail not delivered: no gateway configured")
	return nil
}
