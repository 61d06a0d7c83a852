package signing

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid 令牌被篡改、格式错误或用途不符；校验一律 fail closed
	ErrTokenInvalid = errors.New("令牌无效")
)

const purposeUnsubscribe = "unsubscribe"

// Claims 退订令牌声明
type Claims struct {
	UserID  uint   `json:"user_id"`
	Purpose string `json:"purpose"`
	jwtv5.RegisteredClaims
}

// Manager 退订令牌签发与校验（进程级对称密钥）
type Manager struct {
	secret []byte
}

// NewManager 创建令牌管理器
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// SignUnsubscribe 为用户签发退订令牌
// 令牌不设过期时间：退订链接要在任意时刻可用（与邮件一同长期存在）。
func (m *Manager) SignUnsubscribe(userID uint) (string, error) {
	claims := Claims{
		UserID:  userID,
		Purpose: purposeUnsubscribe,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:       uuid.New().String(),
			IssuedAt: jwtv5.NewNumericDate(time.Now()),
			Issuer:   "noticehub",
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyUnsubscribe 校验退订令牌并还原用户 ID
func (m *Manager) VerifyUnsubscribe(tokenString string) (uint, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return 0, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrTokenInvalid
	}
	if claims.Purpose != purposeUnsubscribe || claims.UserID == 0 {
		return 0, ErrTokenInvalid
	}

	return claims.UserID, nil
}
