// Package auth mints and verifies the room-scoped credentials handed out by
// the REST surface. Tokens are opaque to clients; the server treats the exact
// token string as the player's identity when rebinding a reconnecting socket.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the token claims.
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload minted into every room credential.
type Claims struct {
	RoomCode string `json:"roomCode"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies room credentials with a shared HMAC secret.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// Mint returns a signed credential scoped to roomCode with the given role.
func (i *Issuer) Mint(roomCode, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RoomCode: roomCode,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a credential, returning its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.RoomCode == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
