package admin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// argonParams are the Argon2id settings used for every stored hash.
var argonParams = struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen int
}{time: 1, memory: 64 * 1024, threads: 4, keyLen: 32, saltLen: 16}

// hashPassword returns base64 encodings of an Argon2id hash and its random salt.
func hashPassword(password string) (hash string, salt string, err error) {
	rawSalt := make([]byte, argonParams.saltLen)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := deriveKey(password, rawSalt)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// verifyPassword compares password against a stored hash in constant time.
func verifyPassword(password, salt, hash string) (bool, error) {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}
	got := deriveKey(password, rawSalt)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonParams.time, argonParams.memory, argonParams.threads, argonParams.keyLen)
}
