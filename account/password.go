package account

import (
	"fmt"

	"github.com/jcarver/latchkey/internal/util"
)

const saltLen = 16

// HashPassword derives a salted argon2id digest for the password. A fresh
// random salt is generated per call.
func HashPassword(password string, params util.Argon2idParams) (string, error) {
	salt, err := util.RandomBytes(saltLen)
	if err != nil {
		return "", fmt.Errorf("generating password salt: %w", err)
	}
	key, err := util.DeriveArgon2idKey(password, salt, params)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return util.EncodeArgon2idDigest(params, salt, key), nil
}

// CheckPassword reports whether the password matches the stored digest.
// A malformed digest reports no match rather than an error.
func CheckPassword(password, digest string) bool {
	return util.CompareArgon2idDigest(password, digest)
}
