package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	GenderMale         = "male"
	GenderFemale       = "female"
	GenderOther        = "other"
	GenderNotSpecified = "not-specified"

	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusBanned    = "banned"
)

// Genders lists the accepted values of Account.Gender.
var Genders = []string{GenderMale, GenderFemale, GenderOther, GenderNotSpecified}

// Account represents a registered user of the application.
// It contains identity, credentials, and profile data.
type Account struct {
	// ID is the unique identifier assigned by the document store.
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty"`

	// FirstName is the user's given name.
	FirstName string `json:"firstName" bson:"firstName"`

	// LastName is the user's family name.
	LastName string `json:"lastName" bson:"lastName"`

	// Email is the user's email address. It is unique across accounts
	// and used as the login name.
	Email string `json:"email" bson:"email"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"password,omitempty"`

	// Gender is one of Genders; it defaults to "not-specified".
	Gender string `json:"gender" bson:"gender"`

	// Age is optional and, when present, at least 1.
	Age *int `json:"age,omitempty" bson:"age,omitempty"`

	// ProfileImage references the user's avatar. It is either a value
	// supplied by the client or an object storage key under "profiles/".
	ProfileImage string `json:"profileImage" bson:"profileImage"`

	// Role indicates the user's role within the system ("user" or "admin").
	// It is stored but not enforced by any endpoint.
	Role string `json:"role" bson:"role"`

	// Status is the account state ("active", "suspended" or "banned").
	Status string `json:"status" bson:"status"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// AccountSummary is the sanitized view of an account returned on login.
type AccountSummary struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Gender       string `json:"gender"`
	ProfileImage string `json:"profileImage"`
}

// Summary returns the login view of the account.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:           a.ID.Hex(),
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		Gender:       a.Gender,
		ProfileImage: a.ProfileImage,
	}
}

// ProfileUpdate holds the mutable subset of an account. Nil fields are
// left untouched.
type ProfileUpdate struct {
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	Gender       *string `json:"gender" validate:"omitnil,oneof=male female other not-specified"`
	ProfileImage *string `json:"profileImage"`
}

// IsEmpty reports whether the update would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Gender == nil && u.ProfileImage == nil
}
