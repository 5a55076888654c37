package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

var otpSpace = big.NewInt(1000000)

// NewOTP draws a 6-digit code uniformly over 000000-999999 from crypto/rand.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewRandomString returns a URL-safe random string carrying byteLen*8 bits of
// entropy. Reset tokens use 32 bytes (256 bits).
func NewRandomString(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the storage form of an opaque secret: raw token values are
// never written to the database.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
