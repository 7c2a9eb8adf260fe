package model

// PasswordHasher derives and checks one-way password hashes.
//
// Verify returns (false, nil) for a legitimate mismatch and a non-nil error
// only when the stored hash cannot be used at all.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}
