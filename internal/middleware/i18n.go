package middleware

import (
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/gin-gonic/gin"
)

const localeKey = "locale"

// I18n resolves the response locale for every request.
// An explicit ?locale= (websocket and link clients cannot set headers) takes
// precedence over Accept-Language; unsupported values fall back to the bundle default.
func I18n(bundle *i18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		var locale i18n.Locale
		if q := c.Query("locale"); q != "" {
			locale = bundle.Negotiate(q)
		} else {
			locale = bundle.Negotiate(c.GetHeader("Accept-Language"))
		}
		c.Set(localeKey, locale)
		c.Header("Content-Language", string(locale))
		c.Header("Vary", "Accept-Language")
		c.Next()
	}
}

// GetLocale resolved locale of the request; ko outside the I18n middleware
func GetLocale(c *gin.Context) i18n.Locale {
	v, _ := c.Get(localeKey)
	if locale, ok := v.(i18n.Locale); ok {
		return locale
	}
	return i18n.LocaleKo
}
