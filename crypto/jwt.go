package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningAlg = errors.New("invalid token signing algorithm")
	ErrExpiredToken      = errors.New("expired token")
	ErrCorruptedToken    = errors.New("corrupted token")
)

// sessionClaims binds a player identity to a single room. The token is
// issued on first join and presented by the client to reclaim its player
// slot after a transport drop.
type sessionClaims struct {
	PlayerID string `json:"pid"`
	RoomID   string `json:"rid"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	maxAge    time.Duration
}

func NewTokenManager(secretKey string, maxAge time.Duration) *TokenManager {
	return &TokenManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
	}
}

func (m *TokenManager) Generate(playerID, roomID string, now time.Time) (string, error) {
	claims := sessionClaims{
		PlayerID: playerID,
		RoomID:   roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}

	return signedToken, nil
}

// Verify returns the player id and room id embedded in the token.
func (m *TokenManager) Verify(tokenString string) (string, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSigningAlg):
			return "", "", err
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", "", ErrExpiredToken
		default:
			return "", "", ErrCorruptedToken
		}
	}

	if claims, ok := token.Claims.(*sessionClaims); ok && token.Valid {
		return claims.PlayerID, claims.RoomID, nil
	}

	return "", "", ErrCorruptedToken
}
