// Package auth implements the session manager: session id generation and
// the signed session tokens that bind a request to the single live session
// stored on the user record.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/murichu/go-auth-service/internal/common"
)

// Claims carries the user id and the session id the token was minted for.
// A token is only as valid as its session id: rotating or clearing the
// stored session id invalidates every previously issued token at once.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// GenerateToken mints an HS256 session token for the given user and session.
func GenerateToken(userID, sessionID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:    userID,
		SessionID: sessionID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature and shape and returns the embedded user and
// session ids. An elapsed token yields common.ErrTokenExpired; any other
// verification failure yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (userID, sessionID string, err error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", common.ErrTokenExpired
		}
		return "", "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return "", "", common.ErrInvalidToken
	}

	return claims.UserID, claims.SessionID, nil
}
