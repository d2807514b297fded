// Package auth issues and verifies the signed session tokens that gate
// every request and websocket handshake. Verification is stateless:
// claims are reconstructed from the signature alone, never looked up.
package auth

import (
	"time"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/config"
	"github.com/Lupao-eth/triptask-backend/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	UseAccess  = "access"
	UseRefresh = "refresh"

	AccessTTL  = time.Hour
	RefreshTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID   uint            `json:"user_id"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	TokenUse string          `json:"token_use"`
	jwt.RegisteredClaims
}

// IssueAccessToken creates the short-lived credential accepted by
// request handlers and the websocket handshake.
func IssueAccessToken(user *models.User) (string, error) {
	return issue(user, UseAccess, AccessTTL)
}

// IssueRefreshToken creates the long-lived credential that can mint new
// access tokens. It is never accepted directly as request authorization.
func IssueRefreshToken(user *models.User) (string, error) {
	return issue(user, UseRefresh, RefreshTTL)
}

func issue(user *models.User, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(config.JWTSecret)
}

// Verify parses and validates a token of either flavor. Expiry, a bad
// signature and a malformed token all come back as ErrUnauthenticated;
// callers treat every verification failure the same way.
func Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return config.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.ErrUnauthenticated, "invalid or expired token")
	}
	if claims.TokenUse == "" {
		claims.TokenUse = UseAccess
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func Refresh(refreshToken string) (string, error) {
	claims, err := Verify(refreshToken)
	if err != nil {
		return "", err
	}
	if claims.TokenUse != UseRefresh {
		return "", apperr.Wrap(apperr.ErrUnauthenticated, "not a refresh token")
	}
	user := models.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
	return IssueAccessToken(&user)
}
