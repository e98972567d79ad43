package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/gin-gonic/gin"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	engine service.ConversationEngine
	paging Paging
	responder
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(engine service.ConversationEngine, bundle *i18n.Bundle, paging Paging) *MessageHandler {
	return &MessageHandler{engine: engine, paging: paging, responder: newResponder(bundle)}
}

// List handles GET /conversations/:id/messages?order=desc&offset=&limit=
func (h *MessageHandler) List(c *gin.Context) {
	q := service.MessageQuery{NewestFirst: strings.EqualFold(c.Query("order"), "desc")}
	q.Offset, q.Limit = h.paging.window(c)
	views, err := h.engine.ListMessages(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, views, &common.Meta{Offset: q.Offset, Limit: q.Limit})
}

// Post handles POST /conversations/:id/messages
// A multipart body posts an attachment message (files under "files", optional "content").
func (h *MessageHandler) Post(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.postAttachments(c)
		return
	}

	var req domain.PostMessageRequest
	if !h.bind(c, &req) {
		return
	}
	msg, err := h.engine.PostMessage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), service.PostInput{
		Content:       req.Content,
		Kind:          req.Kind,
		AllowAutoJoin: req.AutoJoin,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.CreatedResponse(c, msg, h.t(c, "message.send_success"))
}

func (h *MessageHandler) postAttachments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.badRequest(c, "error.bad_request")
		return
	}
	defer form.RemoveAll() //nolint:errcheck // 임시파일 정리

	headers := form.File["files"]
	files := make([]service.AttachmentFile, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.badRequest(c, "error.bad_request")
			return
		}
		closers = append(closers, f)
		files = append(files, service.AttachmentFile{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Body:     f,
		})
	}

	content := c.PostForm("content")
	msg, err := h.engine.PostAttachmentMessage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), content, files)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.CreatedResponse(c, msg, h.t(c, "message.send_success"))
}

// PostDirect handles POST /messages/direct
func (h *MessageHandler) PostDirect(c *gin.Context) {
	var req domain.DirectMessageRequest
	if !h.bind(c, &req) {
		return
	}
	msg, err := h.engine.PostOrCreate(c.Request.Context(), middleware.GetUserID(c), req.ParticipantIDs, req.Content, req.Relation)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.CreatedResponse(c, msg, h.t(c, "message.send_success"))
}

// Edit handles PATCH /conversations/:id/messages/:mid
func (h *MessageHandler) Edit(c *gin.Context) {
	msgID, err := messageIDParam(c)
	if err != nil {
		h.badRequest(c, "error.bad_request")
		return
	}
	var req domain.EditMessageRequest
	if !h.bind(c, &req) {
		return
	}

	msg, err := h.engine.EditMessage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), msgID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.MessageResponse(c, msg, h.t(c, "message.edit_success"))
}

// Delete handles DELETE /conversations/:id/messages/:mid
// Only the caller's copy is removed.
func (h *MessageHandler) Delete(c *gin.Context) {
	h.mark(c, domain.StatusDeleted, "message.delete_success")
}

// MarkRead handles POST /conversations/:id/messages/:mid/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.mark(c, domain.StatusRead, "message.status_success")
}

// MarkUnread handles POST /conversations/:id/messages/:mid/unread
func (h *MessageHandler) MarkUnread(c *gin.Context) {
	h.mark(c, domain.StatusUnread, "message.status_success")
}

// Archive handles POST /conversations/:id/messages/:mid/archive
func (h *MessageHandler) Archive(c *gin.Context) {
	h.mark(c, domain.StatusArchived, "message.status_success")
}

func (h *MessageHandler) mark(c *gin.Context, target domain.Status, successKey string) {
	msgID, err := messageIDParam(c)
	if err != nil {
		h.badRequest(c, "error.bad_request")
		return
	}
	changed, err := h.engine.MarkStatus(c.Request.Context(), c.Param("id"), msgID, middleware.GetUserID(c), target)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.MessageResponse(c, domain.StatusChangeResponse{
		MessageID: msgID,
		Status:    target.String(),
		Changed:   changed,
	}, h.t(c, successKey))
}

// ReadBy handles GET /conversations/:id/messages/:mid/read-by
func (h *MessageHandler) ReadBy(c *gin.Context) {
	msgID, err := messageIDParam(c)
	if err != nil {
		h.badRequest(c, "error.bad_request")
		return
	}
	users, err := h.engine.ReadBy(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), msgID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, gin.H{"message_id": msgID, "read_by": users}, nil)
}

// Reactions handles GET /conversations/:id/messages/:mid/reactions
func (h *MessageHandler) Reactions(c *gin.Context) {
	msgID, err := messageIDParam(c)
	if err != nil {
		h.badRequest(c, "error.bad_request")
		return
	}
	reactions, err := h.engine.Reactions(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), msgID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.SuccessResponse(c, reactions, nil)
}

// AddReaction handles POST /conversations/:id/messages/:mid/reactions
func (h *MessageHandler) AddReaction(c *gin.Context) {
	h.react(c, h.engine.AddReaction, http.StatusCreated)
}

// RemoveReaction handles DELETE /conversations/:id/messages/:mid/reactions
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	h.react(c, h.engine.RemoveReaction, http.StatusOK)
}

type reactionFunc func(ctx context.Context, actorID, conversationID string, messageID uint64, reaction string) (bool, error)

func (h *MessageHandler) react(c *gin.Context, fn reactionFunc, changedStatus int) {
	msgID, err := messageIDParam(c)
	if err != nil {
		h.badRequest(c, "error.bad_request")
		return
	}
	var req domain.ReactionRequest
	if !h.bind(c, &req) {
		return
	}

	changed, err := fn(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), msgID, req.Reaction)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if changed {
		status = changedStatus
	}
	c.JSON(status, common.APIResponse{Data: gin.H{"message_id": msgID, "reaction": req.Reaction, "changed": changed}})
}
