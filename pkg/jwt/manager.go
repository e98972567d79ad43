package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Claims 메신저 액세스 토큰 페이로드
// 커뮤니티 사이트가 발급한 토큰은 mb_id 를, 자체 발급 토큰은 user_id 를 사용함
// 둘 다 없으면 표준 sub 클레임을 사용
type Claims struct {
	jwt.RegisteredClaims
	MbID     string `json:"mb_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// GetUserID returns the user ID, checking every supported format
func (c *Claims) GetUserID() string {
	switch {
	case c.MbID != "":
		return c.MbID
	case c.UserID != "":
		return c.UserID
	default:
		return c.Subject
	}
}

// Manager signs and verifies HS256 tokens
type Manager struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
	now       func() time.Time
}

// NewManager expiresIn <= 0 issues tokens without an expiry
func NewManager(secret, issuer string, expiresIn time.Duration) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		issuer:    issuer,
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

// Generate issues a token for userID. Used by tooling and tests; production
// tokens come from the identity provider.
func (m *Manager) Generate(userID, nickname string) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   m.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID:   userID,
		Nickname: nickname,
	}
	if m.expiresIn > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.expiresIn))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Verify parses tokenString and returns its claims.
// The issuer is checked only when the manager has one.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(m.now)}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.GetUserID() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
