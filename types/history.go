package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	HistoryTypeForest = "forest"
	HistoryTypeSea    = "sea"
)

// HistoryEntry records a single visit to a location by an account.
// Entries are immutable once written.
type HistoryEntry struct {
	// ID is the unique identifier assigned by the document store.
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty"`

	// UserID references the owning account. The reference is not checked
	// against the accounts collection.
	UserID primitive.ObjectID `json:"userId" bson:"userId"`

	// LocationID identifies the visited location in the client's catalogue.
	LocationID string `json:"locationId" bson:"locationId"`

	// Name is the display name of the location.
	Name string `json:"name" bson:"name"`

	// Type is the kind of location, usually "forest" or "sea".
	Type string `json:"type" bson:"type"`

	// Date is the visit date as sent by the client (YYYY-MM-DD).
	Date string `json:"date" bson:"date"`

	// Time is the visit time as sent by the client (HH:mm).
	Time string `json:"time" bson:"time"`

	// Timestamp is assigned by the server on creation and drives ordering.
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
