package middleware

import (
	"errors"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey   = "userID"
	nicknameKey = "nickname"
)

// TokenVerifier verifies a bearer token
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// JWTAuth JWT authentication middleware.
// The token's user id is normalized with keyKind before it becomes the actor.
func JWTAuth(verifier TokenVerifier, keyKind domain.ActorKeyKind, bundle *i18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c, bundle, common.ErrInvalidToken)
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				abortUnauthorized(c, bundle, common.ErrExpiredToken)
			} else {
				abortUnauthorized(c, bundle, common.ErrInvalidToken)
			}
			return
		}

		userID, err := keyKind.Normalize(claims.GetUserID())
		if err != nil {
			abortUnauthorized(c, bundle, common.ErrInvalidToken)
			return
		}

		c.Set(userIDKey, userID)
		c.Set(nicknameKey, claims.Nickname)
		c.Next()
	}
}

// bearerToken Authorization 헤더 우선, 없으면 웹소켓용 token 쿼리
func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

func abortUnauthorized(c *gin.Context, bundle *i18n.Bundle, err error) {
	key := common.ErrorKey(err)
	common.ErrorResponse(c, common.HTTPStatus(err), key, bundle.T(GetLocale(c), key))
	c.Abort()
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetNickname extracts nickname from context
func GetNickname(c *gin.Context) string {
	return c.GetString(nicknameKey)
}
