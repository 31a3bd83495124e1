package utils

import (
	"errors"
	"fmt"
	"time"

	"devconnect/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// 自定义JWT声明结构
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// 每次读取配置, 避免包初始化时密钥为空
func jwtSecret() []byte {
	return []byte(config.GlobalConfig.JWT.Secret)
}

// 生成JWT令牌
func GenerateToken(userID uint) (string, error) {
	if len(jwtSecret()) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	expiration := config.GlobalConfig.JWT.Expiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// 过期时间
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			// 签发时间
			IssuedAt: jwt.NewNumericDate(now),
			// 生效时间
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	// 生成带有声明的token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// 签名token
	return token.SignedString(jwtSecret())
}

// 解析JWT令牌
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != 0 {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
