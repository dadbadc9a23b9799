package services

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor used for new digests.
const PasswordCost = 10

// HashPassword returns a salted bcrypt digest of password.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword reports whether candidate matches digest.
func VerifyPassword(digest, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(candidate)) == nil
}

// dummyDigest is compared against when the email is unknown so that both
// failure paths of Authenticate cost one bcrypt comparison.
var dummyDigest = func() string {
	digest, err := HashPassword("moodlocation-unknown-account")
	if err != nil {
		panic(err)
	}
	return digest
}()
