package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token signature")
)

type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies stateless bearer tokens. HS256 only; tokens
// carrying any other algorithm are rejected outright.
type JWTManager struct {
	secret []byte
	issuer string
}

func NewJWTManager(secret, issuer string) (*JWTManager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	return &JWTManager{secret: []byte(secret), issuer: issuer}, nil
}

func (m *JWTManager) Sign(subject, username, email, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Username: username,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse validates signature and expiry only; it never consults a store.
func (m *JWTManager) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	switch {
	case err == nil && token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	default:
		return nil, ErrInvalidToken
	}
}
