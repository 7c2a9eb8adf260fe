package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dtroode/identity-server/internal/model"
)

var (
	ErrInvalidHash        = errors.New("stored password hash is malformed")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
	ErrUnknownAlgorithm   = errors.New("unknown password hashing algorithm")
	ErrIncompatibleArgon2 = errors.New("incompatible argon2 version")
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var _ model.PasswordHasher = (*Codec)(nil)

type hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// Codec hashes new passwords with the configured algorithm and verifies
// stored hashes of any supported format.
type Codec struct {
	hash   hasher
	bcrypt *BcryptHasher
	argon2 *Argon2Hasher
}

// NewCodec returns a codec hashing with the named algorithm.
func NewCodec(algorithm string, bcryptCost int, argon2Params Argon2Params) (*Codec, error) {
	c := &Codec{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2Hasher(argon2Params),
	}

	switch algorithm {
	case AlgorithmBcrypt, "":
		c.hash = c.bcrypt
	case AlgorithmArgon2id:
		c.hash = c.argon2
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}

	return c, nil
}

func (c *Codec) Hash(plaintext string) (string, error) {
	return c.hash.Hash(plaintext)
}

// Verify picks the hasher by the stored hash prefix.
func (c *Codec) Verify(plaintext, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return c.argon2.Verify(plaintext, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return c.bcrypt.Verify(plaintext, hash)
	default:
		return false, ErrInvalidHash
	}
}
