package domain

import "time"

// LobbyThread is the marketplace-wide chat thread.
const LobbyThread = "lobby"

// ProductThread returns the thread id for messages about one product.
func ProductThread(productID string) string {
	return "product:" + productID
}

// Message is a chat message in a product thread or the lobby.
type Message struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	ThreadID    string    `json:"thread_id" bson:"thread_id"`
	ProductID   string    `json:"product_id,omitempty" bson:"product_id,omitempty"`
	SenderID    string    `json:"sender_id" bson:"sender_id"`
	SenderEmail string    `json:"sender_email,omitempty" bson:"sender_email,omitempty"`
	Text        string    `json:"text" bson:"text"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// Notification is a short notice shown on the dashboard.
type Notification struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Kind      string    `json:"kind" bson:"kind"`
	Text      string    `json:"text" bson:"text"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

const (
	NotificationMessage = "message"
	NotificationEscrow  = "escrow"
	NotificationDeposit = "deposit"
)
