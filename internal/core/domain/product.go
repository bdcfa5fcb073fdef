package domain

import "time"

// Product is a listing owned by a seller. Price is in NGN; PriceSui is the
// SUI equivalent at listing time and may be zero when no rate was available.
type Product struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Name         string    `json:"name" bson:"name"`
	Price        float64   `json:"price" bson:"price"`
	PriceSui     float64   `json:"price_sui" bson:"price_sui"`
	Description  string    `json:"description" bson:"description"`
	Category     string    `json:"category" bson:"category"`
	DeliveryTime string    `json:"delivery_time,omitempty" bson:"delivery_time,omitempty"`
	Images       []string  `json:"images" bson:"images"`
	OwnerUserID  string    `json:"owner_user_id" bson:"owner_user_id"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// OwnedBy reports whether userID is the product's seller.
func (p *Product) OwnedBy(userID string) bool {
	return userID != "" && p.OwnerUserID == userID
}
