package recovery

import (
	"fmt"

	"github.com/jcarver/latchkey/internal/util"
)

const answerSaltLen = 16

// AnswerHasher produces and checks one-way digests of normalized security
// answers. Answers are matched case- and whitespace-insensitively; each Hash
// call salts independently.
type AnswerHasher struct {
	params util.Argon2idParams
}

// NewAnswerHasher creates a hasher with the given argon2id parameters.
func NewAnswerHasher(params util.Argon2idParams) *AnswerHasher {
	return &AnswerHasher{params: params}
}

// Hash normalizes raw and derives a fresh salted argon2id digest.
func (h *AnswerHasher) Hash(raw string) (string, error) {
	salt, err := util.RandomBytes(answerSaltLen)
	if err != nil {
		return "", fmt.Errorf("generating answer salt: %w", err)
	}
	key, err := util.DeriveArgon2idKey(util.NormalizeSecretAnswer(raw), salt, h.params)
	if err != nil {
		return "", fmt.Errorf("hashing answer: %w", err)
	}
	return util.EncodeArgon2idDigest(h.params, salt, key), nil
}

// Verify reports whether raw matches the digest after normalization. A
// malformed digest reports false; Verify never returns an error.
func (h *AnswerHasher) Verify(raw, digest string) bool {
	return util.CompareArgon2idDigest(util.NormalizeSecretAnswer(raw), digest)
}
