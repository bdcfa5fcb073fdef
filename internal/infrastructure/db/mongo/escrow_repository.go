package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type EscrowRepository struct {
	col *mongo.Collection
}

func NewEscrowRepository(db *mongo.Database) *EscrowRepository {
	return &EscrowRepository{col: db.Collection(collectionEscrows)}
}

func (r *EscrowRepository) Create(ctx context.Context, e *domain.Escrow) (*domain.Escrow, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := *e
	doc.ID = primitive.NewObjectID().Hex()
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, storeErr("insert escrow", err)
	}
	return &doc, nil
}

func (r *EscrowRepository) FindByID(ctx context.Context, id string) (*domain.Escrow, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e domain.Escrow
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("find escrow", err)
	}
	return &e, nil
}

// Transition atomically moves the escrow from t.From to t.To. A concurrent
// change makes the filter miss and yields domain.ErrInvalidTransition.
func (r *EscrowRepository) Transition(ctx context.Context, id string, t ports.EscrowTransition) (*domain.Escrow, error) {
	if !t.From.CanTransitionTo(t.To) {
		return nil, domain.ErrInvalidTransition
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"status": t.To}
	if t.ConfirmTxDigest != "" {
		set["confirm_tx_digest"] = t.ConfirmTxDigest
	}
	if t.To == domain.EscrowCompleted {
		set["confirmed_at"] = time.Now().UTC()
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e domain.Escrow
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": t.From}, bson.M{"$set": set}, opts).Decode(&e)
	if err == nil {
		return &e, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storeErr("transition escrow", err)
	}
	if _, ferr := r.FindByID(ctx, id); ferr != nil {
		return nil, ferr
	}
	return nil, domain.ErrInvalidTransition
}

// ListByUser returns escrows where the user is buyer or seller, newest first.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Escrow, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{bson.M{"buyer_id": userID}, bson.M{"seller_id": userID}}}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, storeErr("list escrows", err)
	}
	var out []*domain.Escrow
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("decode escrows", err)
	}
	return out, nil
}

func (r *EscrowRepository) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"status": domain.EscrowActive,
		"$or":    bson.A{bson.M{"buyer_id": userID}, bson.M{"seller_id": userID}},
	}
	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, storeErr("count escrows", err)
	}
	return n, nil
}

func (r *EscrowRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "status", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
