package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
)

const TokenExpire = 24 * time.Hour

const bearerPrefix = "Bearer "

type Claims struct {
	jwt.RegisteredClaims
	Operator string `json:"operator"`
}

// BuildToken signs an API token for the operator.
func BuildToken(operator string, secret []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = TokenExpire
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
			Operator: operator,
		},
	)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("JWT signing: %w", err)
	}
	return tokenString, nil
}

func CheckToken(tokenString string, secret []byte) (Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return secret, nil
		})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Claims{}, serviceerrs.ErrTokenExpired
	}
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token %w", err)
	}

	return *claims, nil
}

// FromHeader extracts the token of an "Authorization: Bearer ..." value.
func FromHeader(value string) (string, bool) {
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(value, bearerPrefix))
	return token, token != ""
}
