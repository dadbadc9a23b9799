package store

import (
	"context"
	"errors"
	"time"

	"github.com/moodlocation/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountsCollection is the collection accounts are stored in.
const AccountsCollection = "users"

// withoutPassword excludes the digest from reads that feed API responses.
var withoutPassword = bson.M{"password": 0}

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(coll *mongo.Collection) *AccountRepository {
	return &AccountRepository{coll: coll}
}

// GetByID returns the account without its password digest.
func (r *AccountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.Account, error) {
	var account types.Account
	err := r.coll.FindOne(
		ctx,
		bson.M{"_id": id},
		options.FindOne().SetProjection(withoutPassword),
	).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

// GetByEmail returns the account including its password digest.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	var account types.Account
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	result, err := r.coll.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Account{}, ErrDuplicateKey
		}
		return types.Account{}, err
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		account.ID = id
	}
	return account, nil
}

// UpdateProfile sets the provided profile fields and returns the updated
// account without its password digest.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.Account, error) {
	set := bson.M{}
	if update.FirstName != nil {
		set["firstName"] = *update.FirstName
	}
	if update.LastName != nil {
		set["lastName"] = *update.LastName
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.ProfileImage != nil {
		set["profileImage"] = *update.ProfileImage
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	var account types.Account
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(withoutPassword),
	).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}
