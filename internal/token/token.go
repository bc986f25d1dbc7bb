// Package token 签发和解析会话令牌（HS256 JWT）
// 令牌只绑定 user_id；权限判定每次请求实时查库，不写进 claims
package token

import (
	"fmt"
	"time"

	"chrono-core/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Generate 签发会话令牌，返回 (token, jti)
// jti 用作 Redis 会话记录的 key，使令牌可以被服务端撤销
func Generate(userID string, secret []byte, ttl time.Duration) (string, string, error) {
	jti := uuid.NewString()
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	signed, err := t.SignedString(secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, jti, nil
}

// Parse 解析并校验会话令牌，返回 claims
// 签名无效或已过期均返回 domain.ErrInvalidToken
func Parse(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
