package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the session identity issued after a successful code
// verification.
type Claims struct {
	jwt.RegisteredClaims
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	SubscriptionPlan string `json:"subscriptionPlan"`
}

// Identity is the subset of a profile that ends up in a token.
type Identity struct {
	ID               string
	Email            string
	Role             string
	SubscriptionPlan string
}

func GenerateToken(id Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	if len(secretKey) == 0 {
		return "", fmt.Errorf("%w: empty signing key", common.ErrorInternal)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		ID:               id.ID,
		Email:            id.Email,
		Role:             id.Role,
		SubscriptionPlan: id.SubscriptionPlan,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates the signature and expiry and returns the embedded
// identity.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
