package handler

import (
	"net/http"
	"strconv"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/gin-gonic/gin"
)

// ConversationHandler handles conversation HTTP requests
type ConversationHandler struct {
	engine service.ConversationEngine
	paging Paging
	responder
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(engine service.ConversationEngine, bundle *i18n.Bundle, paging Paging) *ConversationHandler {
	return &ConversationHandler{engine: engine, paging: paging, responder: newResponder(bundle)}
}

// List handles GET /conversations
// Optional relation filter: relation_type, relation_kind, relation_id
func (h *ConversationHandler) List(c *gin.Context) {
	var q service.ConversationQuery
	q.Offset, q.Limit = h.paging.window(c)
	if relType := c.Query("relation_type"); relType != "" {
		q.Relation = &domain.RelationRef{
			Type: relType,
			Kind: domain.RelationIDKind(c.Query("relation_kind")),
			ID:   c.Query("relation_id"),
		}
	}

	summaries, err := h.engine.ListConversations(c.Request.Context(), middleware.GetUserID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, summaries, &common.Meta{Offset: q.Offset, Limit: q.Limit})
}

// Create handles POST /conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req domain.CreateConversationRequest
	if !h.bind(c, &req) {
		return
	}

	conv, msg, err := h.engine.CreateConversation(c.Request.Context(), middleware.GetUserID(c), service.CreateConversationInput{
		ParticipantIDs: req.ParticipantIDs,
		Relations:      req.Relations,
		Title:          req.Title,
		TypeID:         req.TypeID,
		Content:        req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.CreatedResponse(c, gin.H{"conversation": conv, "message": msg}, h.t(c, "conversation.create_success"))
}

// Get handles GET /conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	detail, err := h.engine.GetConversation(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), string(middleware.GetLocale(c)))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, detail, nil)
}

// Delete handles DELETE /conversations/:id
// Removes the conversation for the caller; it disappears for everyone once all participants did.
func (h *ConversationHandler) Delete(c *gin.Context) {
	result, err := h.engine.DeleteConversation(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.MessageResponse(c, gin.H{"removed": result.Removed, "purged": result.Purged}, h.t(c, "conversation.delete_success"))
}

// MarkAllRead handles POST /conversations/:id/read
func (h *ConversationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.engine.MarkAllRead(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.MessageResponse(c, gin.H{"updated": n}, h.t(c, "conversation.read_all_success", n))
}

// MarkAllUnread handles POST /conversations/:id/unread
func (h *ConversationHandler) MarkAllUnread(c *gin.Context) {
	n, err := h.engine.MarkAllUnread(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.MessageResponse(c, gin.H{"updated": n}, h.t(c, "conversation.unread_all_success", n))
}

// Typing handles POST /conversations/:id/typing
func (h *ConversationHandler) Typing(c *gin.Context) {
	if err := h.engine.SendTyping(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount handles GET /unread-count
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	n, err := h.engine.UnreadCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"unread": n}, nil)
}

// CreateType handles POST /conversation-types
func (h *ConversationHandler) CreateType(c *gin.Context) {
	var req domain.CreateConversationTypeRequest
	if !h.bind(c, &req) {
		return
	}
	t, err := h.engine.CreateConversationType(c.Request.Context(), req.Slug, req.Names)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: t})
}

// TypeName handles GET /conversation-types/:typeId/name?locale=
// The request locale is used when the query has none.
func (h *ConversationHandler) TypeName(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("typeId"), 10, 32)
	if err != nil || id == 0 {
		h.badRequest(c, "error.bad_request")
		return
	}
	locale := c.Query("locale")
	if locale == "" {
		locale = string(middleware.GetLocale(c))
	}

	name, err := h.engine.ConversationTypeName(c.Request.Context(), uint(id), locale)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"id": id, "locale": locale, "name": name}, nil)
}
