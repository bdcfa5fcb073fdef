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

// IdentityRepository stores the authentication provider's user records.
type IdentityRepository struct {
	coll *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{coll: db.Collection(collectionIdentities)}
}

type mongoIdentity struct {
	ID            string                  `bson:"_id"`
	Email         string                  `bson:"email,omitempty"`
	Username      string                  `bson:"username,omitempty"`
	Phone         string                  `bson:"phone,omitempty"`
	PasswordHash  string                  `bson:"password_hash,omitempty"`
	EmailVerified bool                    `bson:"email_verified"`
	DisplayName   string                  `bson:"display_name,omitempty"`
	PhotoURL      string                  `bson:"photo_url,omitempty"`
	Role          string                  `bson:"role"`
	Providers     []domain.LinkedProvider `bson:"providers,omitempty"`
	CreatedAt     int64                   `bson:"created_at"`
	UpdatedAt     int64                   `bson:"updated_at"`
}

func (m *mongoIdentity) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:            m.ID,
		Email:         m.Email,
		Username:      m.Username,
		Phone:         m.Phone,
		PasswordHash:  m.PasswordHash,
		EmailVerified: m.EmailVerified,
		DisplayName:   m.DisplayName,
		PhotoURL:      m.PhotoURL,
		Role:          m.Role,
		Providers:     m.Providers,
		CreatedAt:     unixToTime(m.CreatedAt),
		UpdatedAt:     unixToTime(m.UpdatedAt),
	}
}

func (r *IdentityRepository) Create(ctx context.Context, id *domain.Identity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoIdentity{
		ID:            primitive.NewObjectID().Hex(),
		Email:         id.Email,
		Username:      id.Username,
		Phone:         id.Phone,
		PasswordHash:  id.PasswordHash,
		EmailVerified: id.EmailVerified,
		DisplayName:   id.DisplayName,
		PhotoURL:      id.PhotoURL,
		Role:          id.Role,
		Providers:     id.Providers,
		CreatedAt:     id.CreatedAt.Unix(),
		UpdatedAt:     id.UpdatedAt.Unix(),
	}
	if doc.Role == "" {
		doc.Role = domain.RoleUser
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, storeErr("insert identity", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, userID string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": userID})
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	if email == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *IdentityRepository) FindByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	if phone == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *IdentityRepository) FindByProvider(ctx context.Context, provider, subject string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"providers": bson.M{"$elemMatch": bson.M{"provider": provider, "subject": subject}}})
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m mongoIdentity
	if err := r.coll.FindOne(ctx, filter).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeErr("find identity", err)
	}
	return m.toDomain(), nil
}

func (r *IdentityRepository) Update(ctx context.Context, userID string, upd ports.IdentityUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC().Unix()}
	if upd.PasswordHash != nil {
		set["password_hash"] = *upd.PasswordHash
	}
	if upd.EmailVerified != nil {
		set["email_verified"] = *upd.EmailVerified
	}
	if upd.DisplayName != nil {
		set["display_name"] = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		set["photo_url"] = *upd.PhotoURL
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return storeErr("update identity", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *IdentityRepository) LinkProvider(ctx context.Context, userID string, link domain.LinkedProvider) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"providers": link},
			"$set":      bson.M{"updated_at": time.Now().UTC().Unix()},
		},
	)
	if err != nil {
		return storeErr("link provider", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates unique indexes on e-mail, phone and provider subject.
// Partial filters let identities without an e-mail or phone coexist.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "providers.provider", Value: 1}, {Key: "providers.subject", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// UsernameRepository stores the username → e-mail mapping. The username is
// the document key, so uniqueness needs no extra index.
type UsernameRepository struct {
	coll *mongo.Collection
}

func NewUsernameRepository(db *mongo.Database) *UsernameRepository {
	return &UsernameRepository{coll: db.Collection(collectionUsernames)}
}

func (r *UsernameRepository) Create(ctx context.Context, rec *domain.UsernameRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return storeErr("insert username", err)
	}
	return nil
}

func (r *UsernameRepository) Find(ctx context.Context, username string) (*domain.UsernameRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec domain.UsernameRecord
	if err := r.coll.FindOne(ctx, bson.M{"_id": username}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("find username", err)
	}
	return &rec, nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
