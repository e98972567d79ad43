package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/hook"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxReactionLength = 50

// PostInput parameters of PostMessage
type PostInput struct {
	Content string
	// Kind defaults to text
	Kind domain.MessageKind
	// AllowAutoJoin adds a non-participant poster to the conversation instead of refusing
	AllowAutoJoin bool
}

// MessageQuery ordering and paging for ListMessages.
// The zero value lists every visible message oldest first.
type MessageQuery struct {
	NewestFirst bool
	Offset      int
	Limit       int
}

// draft message about to be posted
type draft struct {
	content       string
	kind          domain.MessageKind
	attachments   []domain.Attachment
	allowAutoJoin bool
}

func messagePayload(actor string, msg *domain.Message) *hook.Payload {
	return &hook.Payload{
		ActorID:        actor,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Data: map[string]interface{}{
			"message": msg,
			"content": msg.Content,
			"kind":    string(msg.Kind),
		},
	}
}

// checkText text messages need non-blank content
func (e *conversationEngine) checkText(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", common.ErrInvalidInput)
	}
	return e.checkContent(content)
}

// insertMessage persists msg with one status row per participant and bumps
// the conversation's activity time. Must run inside tx.
func (e *conversationEngine) insertMessage(ctx context.Context, tx *gorm.DB, msg *domain.Message, participants []string) error {
	if err := e.messages.WithTx(tx).Create(ctx, msg); err != nil {
		return err
	}

	statuses := lo.Map(participants, func(userID string, _ int) domain.MessageStatus {
		st := domain.MessageStatus{
			MessageID:      msg.ID,
			UserID:         userID,
			ConversationID: msg.ConversationID,
			Status:         domain.StatusUnread,
		}
		if msg.SentBy(userID) {
			st.Self = true
			st.Status = domain.StatusRead
		}
		return st
	})
	if err := e.statuses.WithTx(tx).CreateMany(ctx, statuses); err != nil {
		return err
	}
	return e.conversations.WithTx(tx).Touch(ctx, msg.ConversationID, msg.CreatedAt)
}

// messagePosted post-commit side effects of a new message
func (e *conversationEngine) messagePosted(ctx context.Context, actor string, msg *domain.Message) {
	metrics.MessagesPosted.Inc()
	e.broadcaster.Broadcast(ctx, broadcast.NewMessageSent(msg))
	e.after(ctx, hook.MessageAfterAdd, messagePayload(actor, msg))
}

// PostMessage posts content into a conversation
func (e *conversationEngine) PostMessage(ctx context.Context, actorID, conversationID string, in PostInput) (*domain.Message, error) {
	kind := in.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	if !kind.Valid() || kind == domain.MessageKindAttachment {
		return nil, fmt.Errorf("%w: unsupported message kind %q", common.ErrInvalidInput, kind)
	}
	if err := e.checkText(in.Content); err != nil {
		return nil, err
	}
	return e.post(ctx, actorID, conversationID, draft{content: in.Content, kind: kind, allowAutoJoin: in.AllowAutoJoin})
}

// PostAttachmentMessage stores files through the attachment subsystem and
// posts an attachment message linking them. Content may be empty.
func (e *conversationEngine) PostAttachmentMessage(ctx context.Context, actorID, conversationID, content string, files []AttachmentFile) (*domain.Message, error) {
	if e.attachments == nil {
		return nil, fmt.Errorf("%w: attachments are not enabled", common.ErrRefused)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", common.ErrInvalidInput)
	}
	if err := e.checkContent(content); err != nil {
		return nil, err
	}

	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := e.memberOf(ctx, conversationID, actor); err != nil {
		return nil, err
	}

	attachments, err := e.attachments.Store(ctx, AttachmentRequest{
		ConversationID: conversationID,
		ActorID:        actor,
		Content:        content,
		Files:          files,
	})
	if err != nil {
		return nil, err
	}

	return e.post(ctx, actor, conversationID, draft{content: content, kind: domain.MessageKindAttachment, attachments: attachments})
}

func (e *conversationEngine) post(ctx context.Context, actorID, conversationID string, d draft) (*domain.Message, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       &actor,
		Kind:           d.kind,
		Content:        d.content,
		Attachments:    d.attachments,
		CreatedAt:      e.now(),
	}
	if err := e.before(ctx, hook.MessageBeforeAdd, messagePayload(actor, msg)); err != nil {
		return nil, err
	}

	err = e.tx.Transaction(ctx, func(tx *gorm.DB) error {
		convs := e.conversations.WithTx(tx)
		if _, err := convs.FindByID(ctx, conversationID); err != nil {
			return err
		}

		member, err := convs.IsParticipant(ctx, conversationID, actor)
		if err != nil {
			return err
		}
		if !member {
			if !d.allowAutoJoin {
				return fmt.Errorf("%w: %s is not a participant", common.ErrUnauthorized, actor)
			}
			if err := convs.AddParticipants(ctx, conversationID, []string{actor}, msg.CreatedAt); err != nil {
				return err
			}
		}

		// membership at this instant decides who gets a status row
		participants, err := convs.Participants(ctx, conversationID)
		if err != nil {
			return err
		}
		return e.insertMessage(ctx, tx, msg, participants)
	})
	if err != nil {
		return nil, common.TransientIO(err)
	}

	e.messagePosted(ctx, actor, msg)
	return msg, nil
}

// ListMessages messages userID has not deleted or archived
func (e *conversationEngine) ListMessages(ctx context.Context, conversationID, userID string, q MessageQuery) ([]domain.MessageView, error) {
	user, err := e.actor(userID)
	if err != nil {
		return nil, err
	}
	if _, err := e.memberOf(ctx, conversationID, user); err != nil {
		return nil, err
	}

	views, err := e.messages.ListVisible(ctx, conversationID, user, repository.ListQuery{
		Chronological: !q.NewestFirst,
		Offset:        q.Offset,
		Limit:         q.Limit,
	})
	if err != nil {
		return nil, common.TransientIO(err)
	}
	return views, nil
}

// EditMessage replaces the content of the actor's own message under the editing policy
func (e *conversationEngine) EditMessage(ctx context.Context, actorID, conversationID string, messageID uint64, content string) (*domain.Message, error) {
	if !e.editing.Enabled {
		return nil, common.ErrEditingDisabled
	}
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if err := e.checkText(content); err != nil {
		return nil, err
	}
	if _, err := e.memberOf(ctx, conversationID, actor); err != nil {
		return nil, err
	}

	msg, err := e.messages.FindInConversation(ctx, conversationID, messageID)
	if err != nil {
		return nil, common.TransientIO(err)
	}
	if !msg.SentBy(actor) {
		return nil, common.ErrNotSender
	}

	now := e.now()
	if e.editing.TimeLimit > 0 && now.Sub(msg.CreatedAt) > e.editing.TimeLimit {
		return nil, common.ErrEditWindowExpired
	}

	payload := messagePayload(actor, msg)
	payload.Data["new_content"] = content
	if err := e.before(ctx, hook.MessageBeforeEdit, payload); err != nil {
		return nil, err
	}

	if err := e.messages.UpdateContent(ctx, msg.ID, content, now, e.editing.MarkAsEdited); err != nil {
		return nil, common.TransientIO(err)
	}

	previous := msg.Content
	msg.Content = content
	msg.EditedAt = &now
	if e.editing.MarkAsEdited {
		msg.IsEdited = true
	}

	if e.editing.BroadcastEdits {
		e.broadcaster.Broadcast(ctx, broadcast.NewMessageEdited(msg))
	}

	after := messagePayload(actor, msg)
	after.Data["previous_content"] = previous
	e.after(ctx, hook.MessageAfterEdit, after)
	return msg, nil
}

// reactionTarget validates a reaction request and returns the normalized actor and reaction
func (e *conversationEngine) reactionTarget(ctx context.Context, actorID, conversationID string, messageID uint64, reaction string) (string, string, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return "", "", err
	}
	reaction = strings.TrimSpace(reaction)
	if reaction == "" || utf8.RuneCountInString(reaction) > maxReactionLength {
		return "", "", fmt.Errorf("%w: reaction must be 1-%d characters", common.ErrInvalidInput, maxReactionLength)
	}
	if _, err := e.memberOf(ctx, conversationID, actor); err != nil {
		return "", "", err
	}
	if _, err := e.messages.FindInConversation(ctx, conversationID, messageID); err != nil {
		return "", "", common.TransientIO(err)
	}
	return actor, reaction, nil
}

// AddReaction records a reaction; only a new reaction is broadcast
func (e *conversationEngine) AddReaction(ctx context.Context, actorID, conversationID string, messageID uint64, reaction string) (bool, error) {
	actor, reaction, err := e.reactionTarget(ctx, actorID, conversationID, messageID, reaction)
	if err != nil {
		return false, err
	}

	added, err := e.messages.AddReaction(ctx, &domain.Reaction{
		MessageID: messageID,
		UserID:    actor,
		Reaction:  reaction,
		CreatedAt: e.now(),
	})
	if err != nil {
		return false, common.TransientIO(err)
	}
	if added {
		e.broadcaster.Broadcast(ctx, broadcast.NewMessageReactionAdded(conversationID, messageID, actor, reaction))
	}
	return added, nil
}

func (e *conversationEngine) RemoveReaction(ctx context.Context, actorID, conversationID string, messageID uint64, reaction string) (bool, error) {
	actor, reaction, err := e.reactionTarget(ctx, actorID, conversationID, messageID, reaction)
	if err != nil {
		return false, err
	}
	removed, err := e.messages.RemoveReaction(ctx, messageID, actor, reaction)
	if err != nil {
		return false, common.TransientIO(err)
	}
	return removed, nil
}

// Reactions every reaction on a message, oldest first
func (e *conversationEngine) Reactions(ctx context.Context, actorID, conversationID string, messageID uint64) ([]domain.Reaction, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := e.memberOf(ctx, conversationID, actor); err != nil {
		return nil, err
	}
	if _, err := e.messages.FindInConversation(ctx, conversationID, messageID); err != nil {
		return nil, common.TransientIO(err)
	}
	reactions, err := e.messages.Reactions(ctx, []uint64{messageID})
	if err != nil {
		return nil, common.TransientIO(err)
	}
	return reactions, nil
}

// SendTyping broadcasts a typing indicator; nothing is stored
func (e *conversationEngine) SendTyping(ctx context.Context, actorID, conversationID string) error {
	actor, err := e.actor(actorID)
	if err != nil {
		return err
	}
	if _, err := e.memberOf(ctx, conversationID, actor); err != nil {
		return err
	}
	e.broadcaster.Broadcast(ctx, broadcast.NewUserTyping(conversationID, actor))
	return nil
}
