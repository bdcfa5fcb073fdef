package ports

import (
	"context"
	"io"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

// DepositInput is an external payment confirmation to be credited.
type DepositInput struct {
	UserID    string
	Amount    float64
	Currency  string
	Reference string
	Source    string
}

// DepositResult reports the ledger entry and whether it was a replay.
type DepositResult struct {
	Deposit        *domain.Deposit
	Balance        float64
	AlreadyApplied bool
}

// PayoutInput is an internal SUI credit. Reference must be unique per
// credit, e.g. derived from the escrow it settles.
type PayoutInput struct {
	UserID    string
	Reference string
	AmountSui float64
	Source    string
}

type BalanceService interface {
	ApplyDeposit(ctx context.Context, in DepositInput) (*DepositResult, error)
	// Redrive retries crediting a ledger entry left pending.
	Redrive(ctx context.Context, reference string) (*DepositResult, error)
	Debit(ctx context.Context, userID string, amount float64) (float64, error)
	// Payout records a SUI credit that does not come from a payment (escrow
	// payouts and refunds) in the ledger and credits it. A failed credit
	// leaves the entry pending for the reconciler.
	Payout(ctx context.Context, in PayoutInput) (*DepositResult, error)
	ListDeposits(ctx context.Context, userID string) ([]*domain.Deposit, error)
}

// Conversion is a priced amount.
type Conversion struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Rate      float64 `json:"rate"`
	AmountSui float64 `json:"amount_sui"`
}

type Converter interface {
	ConvertToSui(ctx context.Context, amount float64, currency string) (*Conversion, error)
}

// CreateProductInput carries the add-product form.
type CreateProductInput struct {
	OwnerID      string
	Name         string
	Price        float64
	Description  string
	Category     string
	DeliveryTime string
	Images       []string
}

// ProductDetail is the product page: the product and its seller.
type ProductDetail struct {
	Product *domain.Product     `json:"product"`
	Seller  *domain.UserProfile `json:"seller,omitempty"`
}

// ProductPage is one page of search results.
type ProductPage struct {
	Items      []*domain.Product `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

type ProductService interface {
	Create(ctx context.Context, in CreateProductInput) (*domain.Product, error)
	Get(ctx context.Context, id string) (*ProductDetail, error)
	Update(ctx context.Context, userID, id string, upd ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, userID, id string) error
	Search(ctx context.Context, filter ProductFilter) (*ProductPage, error)
	Categories(ctx context.Context) ([]string, error)
	UploadImage(ctx context.Context, userID, filename, contentType string, r io.Reader) (string, error)
}

// SendMessageInput carries a chat message.
type SendMessageInput struct {
	ThreadID    string
	ProductID   string
	SenderID    string
	SenderEmail string
	Text        string
}

type MessageService interface {
	Send(ctx context.Context, in SendMessageInput) (*domain.Message, error)
	List(ctx context.Context, threadID string) ([]*domain.Message, error)
	// Subscribe delivers the full thread now and after every change until ctx
	// is cancelled.
	Subscribe(ctx context.Context, threadID string) (<-chan []*domain.Message, error)
}

type EscrowService interface {
	Create(ctx context.Context, buyerID, productID string) (*domain.Escrow, error)
	Confirm(ctx context.Context, buyerID, escrowID string) (*domain.Escrow, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Escrow, error)
}

type PaymentService interface {
	Initialize(ctx context.Context, userID string, amount float64) (*PaymentSession, error)
	VerifyAndDeposit(ctx context.Context, userID, reference string) (*DepositResult, error)
	WalletDeposit(ctx context.Context, userID string, amountSui float64) (*DepositResult, error)
}

type ProfileService interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	Update(ctx context.Context, userID string, upd ProfileUpdate) (*domain.UserProfile, error)
	UploadAvatar(ctx context.Context, userID, filename, contentType string, r io.Reader) (*domain.UserProfile, error)
	SetWallet(ctx context.Context, userID, address string) (*domain.UserProfile, error)
}

// Dashboard is the overview page.
type Dashboard struct {
	Profile            *domain.UserProfile    `json:"profile"`
	Balance            float64                `json:"balance"`
	ProductsCount      int64                  `json:"products_count"`
	ActiveEscrowsCount int64                  `json:"active_escrows_count"`
	NotificationsCount int64                  `json:"notifications_count"`
	Notifications      []*domain.Notification `json:"notifications"`
}

type DashboardService interface {
	Load(ctx context.Context, userID string) (*Dashboard, error)
}

// Deposit job kinds handled by the deposit dispatcher.
const (
	JobVerifyPayment = "verify_payment"
	JobRedrive       = "redrive"
)

// DepositJob is one unit of queued deposit work. Jobs for the same user are
// processed in order.
type DepositJob struct {
	Kind      string
	UserID    string
	Reference string
}

// ShardKey is the key jobs are serialized by.
func (j DepositJob) ShardKey() string {
	if j.UserID != "" {
		return j.UserID
	}
	return j.Reference
}
