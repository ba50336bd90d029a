package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"mailblast/config"
)

// Claims is the token payload issued by the external auth service. Tokens
// are verified here with the shared HMAC secret; issuance lives elsewhere.
type Claims struct {
	AccountID uint `json:"account_id"`
	jwt.RegisteredClaims
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.EncryptionKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
