package handler

import (
	"github.com/suiichiba/marketplace/internal/core/domain"
)

// --- Products ---

type createProductRequest struct {
	Name         string   `json:"name"          validate:"required,max=120"`
	Price        float64  `json:"price"         validate:"required,gt=0"`
	Description  string   `json:"description"   validate:"required,max=4000"`
	Category     string   `json:"category"      validate:"required,max=60"`
	DeliveryTime string   `json:"delivery_time" validate:"max=60"`
	Images       []string `json:"images"        validate:"max=8,dive,url"`
}

// updateProductRequest carries a partial update; absent fields stay as they are.
type updateProductRequest struct {
	Name         *string  `json:"name"          validate:"omitempty,min=1,max=120"`
	Price        *float64 `json:"price"         validate:"omitempty,gt=0"`
	Description  *string  `json:"description"   validate:"omitempty,max=4000"`
	Category     *string  `json:"category"      validate:"omitempty,min=1,max=60"`
	DeliveryTime *string  `json:"delivery_time" validate:"omitempty,max=60"`
	Images       []string `json:"images"        validate:"omitempty,max=8,dive,url"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// --- Messages ---

type sendMessageRequest struct {
	ThreadID  string `json:"thread_id"`
	ProductID string `json:"product_id"`
	Text      string `json:"text" validate:"required"`
}

type messagesResponse struct {
	ThreadID string            `json:"thread_id"`
	Messages []*domain.Message `json:"messages"`
}

// --- Escrows ---

type createEscrowRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

type escrowsResponse struct {
	Escrows []*domain.Escrow `json:"escrows"`
}

// --- Deposits and payments ---

type depositsResponse struct {
	Deposits []*domain.Deposit `json:"deposits"`
}

type initializePaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type verifyPaymentRequest struct {
	Reference string `json:"reference" query:"reference" validate:"required"`
}

type walletDepositRequest struct {
	AmountSui float64 `json:"amount_sui" validate:"required,gt=0"`
}

type depositResponse struct {
	Deposit        *domain.Deposit `json:"deposit"`
	Balance        float64         `json:"balance"`
	AlreadyApplied bool            `json:"already_applied"`
}

type convertRequest struct {
	Amount   float64 `query:"amount"   validate:"required,gt=0"`
	Currency string  `query:"currency" validate:"required,min=3,max=5"`
}

// --- Profile ---

type updateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=64"`
	Bio         *string `json:"bio"          validate:"omitempty,max=500"`
}

type setWalletRequest struct {
	Address string `json:"address" validate:"required,sui_address"`
}
