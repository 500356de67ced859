package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"mailwarm/config"
	"mailwarm/models"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"

	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrWrongTokenType    = errors.New("wrong token type")
	ErrTokenRevoked      = errors.New("token has been revoked")
	ErrUserNotFound      = errors.New("user not found")
	ErrUnexpectedSigning = errors.New("unexpected signing method")
)

type Claims struct {
	UserID       uint   `json:"user_id"`
	TokenVersion int    `json:"token_version"`
	TokenType    string `json:"token_type"`
	jwt.RegisteredClaims
}

func signToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       user.ID,
		TokenVersion: user.TokenVersion,
		TokenType:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// GenerateJWTToken returns a short-lived access token and a refresh token.
func GenerateJWTToken(user *models.User) (string, string, error) {
	accessToken, err := signToken(user, TokenAccess, accessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := signToken(user, TokenRefresh, refreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigning
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// RefreshTokens exchanges a refresh token for a new pair. Tokens issued
// before the user's last logout carry a stale version and are refused.
func RefreshTokens(db *gorm.DB, refreshToken string) (string, string, error) {
	claims, err := ParseJWTToken(refreshToken)
	if err != nil {
		return "", "", err
	}
	if claims.TokenType != TokenRefresh {
		return "", "", ErrWrongTokenType
	}

	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		return "", "", ErrUserNotFound
	}
	if !user.IsActive || claims.TokenVersion != user.TokenVersion {
		return "", "", ErrTokenRevoked
	}

	return GenerateJWTToken(&user)
}
