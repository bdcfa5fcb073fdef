package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// OAuth providers accepted by social sign-in.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// LinkedProvider ties an Identity to an account at an OAuth provider.
type LinkedProvider struct {
	Provider string `json:"provider" bson:"provider"`
	Subject  string `json:"subject" bson:"subject"`
}

// Identity is the authentication provider's record of a user. Its ID is the
// user id every other collection refers to.
type Identity struct {
	ID            string           `json:"id"`
	Email         string           `json:"email,omitempty"`
	Username      string           `json:"username,omitempty"`
	Phone         string           `json:"phone,omitempty"`
	PasswordHash  string           `json:"-"`
	EmailVerified bool             `json:"email_verified"`
	DisplayName   string           `json:"display_name,omitempty"`
	PhotoURL      string           `json:"photo_url,omitempty"`
	Role          string           `json:"role"`
	Providers     []LinkedProvider `json:"providers,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// UsernameRecord maps a username to the e-mail used for password sign-in.
type UsernameRecord struct {
	Username string `json:"username" bson:"_id"`
	Email    string `json:"email" bson:"email"`
	UserID   string `json:"user_id" bson:"user_id"`
}

// UserProfile is the marketplace side of a user: balance, bio, avatar and the
// optional Sui wallet address. Balance is denominated in SUI.
type UserProfile struct {
	UserID           string     `json:"user_id" bson:"_id"`
	Email            string     `json:"email,omitempty" bson:"email,omitempty"`
	Balance          float64    `json:"balance" bson:"balance"`
	DisplayName      string     `json:"display_name" bson:"display_name"`
	Bio              string     `json:"bio" bson:"bio"`
	AvatarPath       string     `json:"avatar_path,omitempty" bson:"avatar_path,omitempty"`
	PhotoURL         string     `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	SuiWalletAddress string     `json:"sui_wallet_address,omitempty" bson:"sui_wallet_address,omitempty"`
	LastPaymentAt    *time.Time `json:"last_payment_at,omitempty" bson:"last_payment_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
}
