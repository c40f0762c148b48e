package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tarot-payment-ledger/internal/config"
)

// UserIDKey is the gin context key holding the authenticated user id
const UserIDKey = "user_id"

var (
	ErrMissingToken   = errors.New("authorization header missing")
	ErrInvalidToken   = errors.New("invalid token")
	ErrEmptyJWTSecret = errors.New("jwt secret cannot be empty")
)

// ParseToken validates an HS256 bearer token and returns the user id carried in sub
func ParseToken(tokenString string, cfg config.AuthConfig) (uuid.UUID, error) {
	if cfg.JWTSecret == "" {
		return uuid.Nil, ErrEmptyJWTSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return userID, nil
}

// Auth rejects requests without a valid bearer token and stores the user id
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, tokenString, found := strings.Cut(authHeader, " ")
		if authHeader == "" || !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			abortUnauthorized(c)
			return
		}

		userID, err := ParseToken(strings.TrimSpace(tokenString), cfg)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user id set by Auth
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "Unauthorized",
	})
}
