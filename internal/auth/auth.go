package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"summitsafeguard/go-tracker-server/internal/model"
)

// ErrInvalidToken covers every token failure: missing claims, bad signature,
// expiry. Callers surface it as a generic unauthorized response.
var ErrInvalidToken = errors.New("invalid token")

const tokenLifetime = 12 * time.Hour

// HashPassword derives a bcrypt hash from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the password matches the stored hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a token carrying the account's identity.
func IssueToken(secret string, account model.Account) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      account.ID,
		"username": account.Username,
		"role":     string(account.Role),
		"hiker":    account.BoundHikerID,
		"exp":      time.Now().Add(tokenLifetime).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token and reconstructs the caller identity.
func ParseToken(secret, tokenString string) (model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return model.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return model.Identity{}, ErrInvalidToken
	}
	username, _ := claims["username"].(string)
	roleStr, _ := claims["role"].(string)
	hiker, _ := claims["hiker"].(string)

	role := model.Role(roleStr)
	if !role.Valid() {
		return model.Identity{}, ErrInvalidToken
	}

	return model.Identity{
		AccountID:    int64(sub),
		Username:     username,
		Role:         role,
		BoundHikerID: hiker,
	}, nil
}
