package ports

import (
	"context"
	"io"
	"time"
)

// PriceFeed returns how many units of currency one SUI costs.
type PriceFeed interface {
	Rate(ctx context.Context, currency string) (float64, error)
}

// PaymentInit is the request to open a payment sheet at the gateway.
type PaymentInit struct {
	Reference string
	UserID    string // echoed back by Verify through the gateway's metadata
	Email     string
	Amount    float64 // major units, e.g. NGN
	Currency  string
}

// PaymentSession is what the client needs to open the gateway's payment sheet.
type PaymentSession struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
}

// PaymentVerification is the gateway's view of a transaction reference.
type PaymentVerification struct {
	Reference string
	Status    string  // "success" on captured payments
	Amount    float64 // major units
	Currency  string
	Email     string
	UserID    string
	PaidAt    time.Time
}

// PaymentGateway is the fiat payment provider.
type PaymentGateway interface {
	Initialize(ctx context.Context, in PaymentInit) (*PaymentSession, error)
	Verify(ctx context.Context, reference string) (*PaymentVerification, error)
}

// MoveCall describes one Move function call submitted as a transaction block.
type MoveCall struct {
	Module    string
	Function  string
	Arguments []any
	GasBudget uint64
}

// TxResult is what the node returned for a submitted transaction. No
// finality check is performed beyond the node's local execution.
type TxResult struct {
	Digest string
	Status string
}

// ChainClient submits transactions to the Sui network.
type ChainClient interface {
	MoveCall(ctx context.Context, call MoveCall) (*TxResult, error)
	Address() string
}

// ObjectStore stores uploaded files by path and resolves them to URLs.
type ObjectStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
	URL(path string) string
}

// SMSSender delivers one-time passwords.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// MailSender delivers sign-in links, reset links and verification mails.
type MailSender interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// OAuthProfile is the identity an OAuth provider vouches for.
type OAuthProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	PictureURL    string
}

// OAuthVerifier exchanges a provider access token for the provider's profile.
type OAuthVerifier interface {
	Verify(ctx context.Context, provider, accessToken string) (*OAuthProfile, error)
}
