package store

import (
	"context"
	"time"

	"github.com/moodlocation/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HistoryCollection is the collection history entries are stored in.
const HistoryCollection = "histories"

// HistoryRepository handles persistence for history entries.
type HistoryRepository struct {
	coll *mongo.Collection
}

func NewHistoryRepository(coll *mongo.Collection) *HistoryRepository {
	return &HistoryRepository{coll: coll}
}

func (r *HistoryRepository) Create(ctx context.Context, entry types.HistoryEntry) (types.HistoryEntry, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}

	result, err := r.coll.InsertOne(ctx, entry)
	if err != nil {
		return types.HistoryEntry{}, err
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = id
	}
	return entry, nil
}

// ListByUser returns every entry owned by userID, most recent first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]types.HistoryEntry, error) {
	cursor, err := r.coll.Find(
		ctx,
		bson.M{"userId": userID},
		options.Find().SetSort(bson.D{
			{Key: "timestamp", Value: -1},
			{Key: "_id", Value: -1},
		}),
	)
	if err != nil {
		return nil, err
	}

	entries := make([]types.HistoryEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
