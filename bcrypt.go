package identity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type bcryptHasher struct{}

// NewBcryptHasher returns the default PasswordHasher
func NewBcryptHasher() PasswordHasher {
	return bcryptHasher{}
}

func (bcryptHasher) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (bcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPassword generates an unguessable placeholder secret for accounts
// provisioned through federated login. The value is hashed and discarded,
// never transmitted to the caller.
func RandomPassword() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// RandomPasswordHash hashes a throwaway random secret
func RandomPasswordHash() string {
	h, err := HashPassword(RandomPassword())
	if err != nil {
		return RandomPasswordHash()
	}
	return h
}

// dummyDigest is compared against when authentication cannot find an
// account, so unknown emails cost the same as wrong passwords. Computed on
// first use; hashing at import time would stall every process that merely
// links the package.
var dummyDigest = sync.OnceValue(func() string {
	h, err := HashPassword(RandomPassword())
	if err != nil {
		panic(err)
	}
	return h
})
