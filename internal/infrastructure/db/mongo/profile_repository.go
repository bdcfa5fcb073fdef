package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

// fieldAppliedRefs holds the ledger references already credited to a
// profile. It is never decoded into domain.UserProfile.
const fieldAppliedRefs = "applied_refs"

// ProfileRepository stores marketplace profiles. Balances only change
// through single-document $inc updates.
type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection(collectionProfiles)}
}

// Ensure inserts p when no profile exists for p.UserID; an existing profile
// is returned untouched.
func (r *ProfileRepository) Ensure(ctx context.Context, p *domain.UserProfile) (*domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	onInsert := bson.M{
		"email":        p.Email,
		"balance":      0.0,
		"display_name": p.DisplayName,
		"bio":          p.Bio,
		"photo_url":    p.PhotoURL,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out domain.UserProfile
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": p.UserID}, bson.M{"$setOnInsert": onInsert}, opts).Decode(&out)
	if err != nil {
		return nil, storeErr("ensure profile", err)
	}
	return &out, nil
}

func (r *ProfileRepository) FindByID(ctx context.Context, userID string) (*domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.UserProfile
	if err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("find profile", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, userID string, upd ports.ProfileUpdate) (*domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.DisplayName != nil {
		set["display_name"] = *upd.DisplayName
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.AvatarPath != nil {
		set["avatar_path"] = *upd.AvatarPath
	}
	if upd.PhotoURL != nil {
		set["photo_url"] = *upd.PhotoURL
	}
	if upd.SuiWalletAddress != nil {
		set["sui_wallet_address"] = *upd.SuiWalletAddress
	}
	if upd.LastPaymentAt != nil {
		set["last_payment_at"] = upd.LastPaymentAt.UTC()
	}

	return r.findAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, "update profile")
}

// CreditOnce matches the profile only while reference is absent from its
// applied_refs, and pushes the reference in the same update as the $inc. A
// second attempt with the same reference matches nothing.
func (r *ProfileRepository) CreditOnce(ctx context.Context, userID, reference string, amount float64) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p, err := r.findAndUpdate(ctx,
		bson.M{"_id": userID, fieldAppliedRefs: bson.M{"$ne": reference}},
		bson.M{
			"$inc":  bson.M{"balance": amount},
			"$push": bson.M{fieldAppliedRefs: reference},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		"credit balance",
	)
	if err == nil {
		return p.Balance, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, false, err
	}

	// Either the profile does not exist or the reference was applied before.
	var cur domain.UserProfile
	err = r.col.FindOne(ctx, bson.M{"_id": userID, fieldAppliedRefs: reference}).Decode(&cur)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, domain.ErrNotFound
		}
		return 0, false, storeErr("credit balance", err)
	}
	return cur.Balance, false, nil
}

// DecrementBalance matches only when the balance covers amount, so the check
// and the write are one atomic operation.
func (r *ProfileRepository) DecrementBalance(ctx context.Context, userID string, amount float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	p, err := r.findAndUpdate(ctx,
		bson.M{"_id": userID, "balance": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"balance": -amount}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		"decrement balance",
	)
	if errors.Is(err, domain.ErrNotFound) {
		n, cerr := r.col.CountDocuments(ctx, bson.M{"_id": userID})
		if cerr != nil {
			return 0, storeErr("decrement balance", cerr)
		}
		if n > 0 {
			return 0, domain.ErrInsufficientBalance
		}
	}
	if err != nil {
		return 0, err
	}
	return p.Balance, nil
}

func (r *ProfileRepository) findAndUpdate(ctx context.Context, filter, update bson.M, op string) (*domain.UserProfile, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p domain.UserProfile
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr(op, err)
	}
	return &p, nil
}

func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
	})
	return err
}
