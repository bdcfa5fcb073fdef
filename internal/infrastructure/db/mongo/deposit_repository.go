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
)

// DepositRepository is the deposit ledger. The unique index on reference is
// what makes crediting idempotent across processes.
type DepositRepository struct {
	col *mongo.Collection
}

func NewDepositRepository(db *mongo.Database) *DepositRepository {
	return &DepositRepository{col: db.Collection(collectionDeposits)}
}

func (r *DepositRepository) Insert(ctx context.Context, d *domain.Deposit) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := *d
	doc.ID = primitive.NewObjectID().Hex()
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return storeErr("insert deposit", err)
	}
	d.ID = doc.ID
	return nil
}

func (r *DepositRepository) FindByReference(ctx context.Context, reference string) (*domain.Deposit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.Deposit
	if err := r.col.FindOne(ctx, bson.M{"reference": reference}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("find deposit", err)
	}
	return &d, nil
}

// MarkCredited flips pending → credited. The balance already holds the
// credit when this runs, so an entry that is already credited is not an error.
func (r *DepositRepository) MarkCredited(ctx context.Context, reference string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"reference": reference, "status": domain.DepositPending},
		bson.M{"$set": bson.M{"status": domain.DepositCredited, "credited_at": at.UTC()}},
	)
	if err != nil {
		return storeErr("mark deposit credited", err)
	}
	return nil
}

func (r *DepositRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Deposit, error) {
	return r.list(ctx,
		bson.M{"status": domain.DepositPending, "created_at": bson.M{"$lt": olderThan.UTC()}},
		bson.D{{Key: "created_at", Value: 1}},
		limit,
	)
}

func (r *DepositRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Deposit, error) {
	return r.list(ctx, bson.M{"user_id": userID}, bson.D{{Key: "created_at", Value: -1}}, limit)
}

func (r *DepositRepository) list(ctx context.Context, filter bson.M, sort bson.D, limit int) ([]*domain.Deposit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("list deposits", err)
	}
	var out []*domain.Deposit
	if err := cur.All(ctx, &out); err != nil {
		return nil, storeErr("decode deposits", err)
	}
	return out, nil
}

func (r *DepositRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
