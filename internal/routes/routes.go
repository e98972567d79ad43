package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers every handler the router exposes. WS is nil unless the websocket driver is active.
type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	WS           *handler.WSHandler
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Setup configures all API routes.
// extra runs after auth on every API route (rate limiting).
func Setup(router *gin.Engine, h Handlers, auth gin.HandlerFunc, health HealthCheck, extra ...gin.HandlerFunc) {
	router.GET("/health", healthHandler(health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1/messenger", append([]gin.HandlerFunc{auth}, extra...)...)

	api.GET("/unread-count", h.Conversation.UnreadCount)
	api.POST("/messages/direct", h.Message.PostDirect)

	// 대화 타입
	types := api.Group("/conversation-types")
	types.POST("", h.Conversation.CreateType)
	types.GET("/:typeId/name", h.Conversation.TypeName)

	conversations := api.Group("/conversations")
	{
		conversations.GET("", h.Conversation.List)
		conversations.POST("", h.Conversation.Create)
		conversations.GET("/:id", h.Conversation.Get)
		conversations.DELETE("/:id", h.Conversation.Delete)
		conversations.POST("/:id/read", h.Conversation.MarkAllRead)
		conversations.POST("/:id/unread", h.Conversation.MarkAllUnread)
		conversations.POST("/:id/typing", h.Conversation.Typing)

		messages := conversations.Group("/:id/messages")
		{
			messages.GET("", h.Message.List)
			messages.POST("", h.Message.Post)
			messages.PATCH("/:mid", h.Message.Edit)
			messages.DELETE("/:mid", h.Message.Delete)
			messages.POST("/:mid/read", h.Message.MarkRead)
			messages.POST("/:mid/unread", h.Message.MarkUnread)
			messages.POST("/:mid/archive", h.Message.Archive)
			messages.GET("/:mid/read-by", h.Message.ReadBy)
			messages.GET("/:mid/reactions", h.Message.Reactions)
			messages.POST("/:mid/reactions", h.Message.AddReaction)
			messages.DELETE("/:mid/reactions", h.Message.RemoveReaction)
		}
	}

	if h.WS != nil {
		// 브라우저 웹소켓은 헤더를 못 넣으므로 ?token= 허용 (auth 미들웨어)
		router.GET("/ws", auth, h.WS.Connect)
	}
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				common.ErrorResponse(c, http.StatusServiceUnavailable, "error.unavailable", err.Error())
				return
			}
		}
		common.SuccessResponse(c, gin.H{"status": "ok"}, nil)
	}
}
