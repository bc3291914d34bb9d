package portal

import (
	"errors"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when hashing passwords.
// Raise it through SetBcryptCost when the deployment can afford it.
const DefaultBcryptCost = 12

var bcryptCost atomic.Int32

func init() {
	bcryptCost.Store(DefaultBcryptCost)
}

// SetBcryptCost overrides the hashing work factor. Out-of-range
// values fall back to the bcrypt defaults.
func SetBcryptCost(cost int) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	bcryptCost.Store(int32(cost))
}

// BcryptCost returns the work factor currently in use.
func BcryptCost() int {
	return int(bcryptCost.Load())
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrIncorrectPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password comparison failed")
	}
	return nil
}
