package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/hook"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// CreateConversationInput parameters of CreateConversation
type CreateConversationInput struct {
	ParticipantIDs []string
	Relations      []domain.RelationRef
	Title          string
	TypeID         *uint
	// Content is posted as the first message when set
	Content *string
}

// ConversationQuery filter and paging for ListConversations. Limit <= 0 lists all.
type ConversationQuery struct {
	Relation *domain.RelationRef
	Offset   int
	Limit    int
}

// DeleteResult outcome of DeleteConversation
type DeleteResult struct {
	// Removed every status row is disposed, so the conversation is gone for everyone
	Removed bool
	// Purged rows were physically deleted (messaging.hard_delete)
	Purged bool
}

// participantSet normalizes ids, adds the actor and sorts the result
func (e *conversationEngine) participantSet(actor string, ids []string) ([]string, error) {
	normalized, err := e.actors(ids)
	if err != nil {
		return nil, err
	}
	set := lo.Uniq(append(normalized, actor))
	slices.Sort(set)
	if len(set) < 2 {
		return nil, common.ErrTooFewParticipants
	}
	return set, nil
}

// CreateConversation creates a conversation, optionally with a first message
func (e *conversationEngine) CreateConversation(ctx context.Context, actorID string, in CreateConversationInput) (*domain.Conversation, *domain.Message, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := e.participantSet(actor, in.ParticipantIDs)
	if err != nil {
		return nil, nil, err
	}
	relations, err := e.normalizeRelations(in.Relations)
	if err != nil {
		return nil, nil, err
	}
	if in.Content != nil {
		if err := e.checkText(*in.Content); err != nil {
			return nil, nil, err
		}
	}
	if in.TypeID != nil {
		if _, err := e.conversations.FindType(ctx, *in.TypeID); err != nil {
			return nil, nil, common.TransientIO(err)
		}
	}

	now := e.now()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   actor,
		Title:     strings.TrimSpace(in.Title),
		TypeID:    in.TypeID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload := &hook.Payload{
		ActorID:        actor,
		ConversationID: conv.ID,
		Data: map[string]interface{}{
			"participants": participants,
			"relations":    relations,
			"title":        conv.Title,
		},
	}
	if in.Content != nil {
		payload.Data["content"] = *in.Content
	}
	if err := e.before(ctx, hook.ConversationBeforeCreate, payload); err != nil {
		return nil, nil, err
	}

	var msg *domain.Message
	if in.Content != nil {
		msg = &domain.Message{
			ConversationID: conv.ID,
			SenderID:       &actor,
			Kind:           domain.MessageKindText,
			Content:        *in.Content,
			CreatedAt:      now,
		}
		if err := e.before(ctx, hook.MessageBeforeAdd, messagePayload(actor, msg)); err != nil {
			return nil, nil, err
		}
	}

	err = e.tx.Transaction(ctx, func(tx *gorm.DB) error {
		convs := e.conversations.WithTx(tx)
		if err := convs.Create(ctx, conv); err != nil {
			return err
		}
		if err := convs.AddRelations(ctx, conv.ID, relations, now); err != nil {
			return err
		}
		if err := convs.AddParticipants(ctx, conv.ID, participants, now); err != nil {
			return err
		}
		if msg != nil {
			return e.insertMessage(ctx, tx, msg, participants)
		}
		return nil
	})
	if err != nil {
		return nil, nil, common.TransientIO(err)
	}

	conv.Participants = lo.Map(participants, func(id string, _ int) domain.Participant {
		return domain.Participant{ConversationID: conv.ID, UserID: id, JoinedAt: now}
	})
	conv.Relations = lo.Map(relations, func(ref domain.RelationRef, _ int) domain.Relation {
		return domain.Relation{ConversationID: conv.ID, RelatedType: ref.Type, RelatedKind: ref.Kind, RelatedID: ref.ID, CreatedAt: now}
	})

	metrics.ConversationsCreated.Inc()
	e.logger.Info().Str("conversation_id", conv.ID).Str("owner", actor).Int("participants", len(participants)).Msg("conversation created")
	e.broadcaster.Broadcast(ctx, broadcast.NewConversationCreated(conv))
	if msg != nil {
		e.messagePosted(ctx, actor, msg)
	}

	after := &hook.Payload{
		ActorID:        actor,
		ConversationID: conv.ID,
		Data: map[string]interface{}{
			"conversation": conv,
			"participants": participants,
		},
	}
	if msg != nil {
		after.MessageID = msg.ID
		after.Data["message"] = msg
		after.Data["content"] = msg.Content
	}
	e.after(ctx, hook.ConversationAfterCreate, after)

	return conv, msg, nil
}

// PostOrCreate posts into the conversation whose members are exactly the
// requested set, creating it when none exists
func (e *conversationEngine) PostOrCreate(ctx context.Context, actorID string, participantIDs []string, content string, relation *domain.RelationRef) (*domain.Message, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	participants, err := e.participantSet(actor, participantIDs)
	if err != nil {
		return nil, err
	}

	var rel *domain.RelationRef
	if relation != nil {
		n, err := relation.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		rel = &n
	}

	existing, err := e.conversations.FindByExactParticipants(ctx, participants, rel)
	if err != nil {
		return nil, common.TransientIO(err)
	}
	if existing != nil {
		return e.PostMessage(ctx, actor, existing.ID, PostInput{Content: content})
	}

	in := CreateConversationInput{ParticipantIDs: participants, Content: &content}
	if rel != nil {
		in.Relations = []domain.RelationRef{*rel}
	}
	_, msg, err := e.CreateConversation(ctx, actor, in)
	return msg, err
}

// DeleteConversation disposes every message of the conversation for userID.
// The conversation itself goes away once no participant has a visible message left.
func (e *conversationEngine) DeleteConversation(ctx context.Context, conversationID, userID string) (DeleteResult, error) {
	var result DeleteResult

	user, err := e.actor(userID)
	if err != nil {
		return result, err
	}
	if _, err := e.memberOf(ctx, conversationID, user); err != nil {
		return result, err
	}

	payload := &hook.Payload{ActorID: user, ConversationID: conversationID}
	if err := e.before(ctx, hook.ConversationBeforeDelete, payload); err != nil {
		return result, err
	}

	var changed int64
	err = e.tx.Transaction(ctx, func(tx *gorm.DB) error {
		statuses := e.statuses.WithTx(tx)
		n, err := statuses.SetAllForUser(ctx, conversationID, user, domain.StatusDeleted)
		if err != nil {
			return err
		}
		changed = n

		active, err := statuses.CountActive(ctx, conversationID)
		if err != nil || active > 0 {
			return err
		}

		result.Removed = true
		convs := e.conversations.WithTx(tx)
		if !e.messaging.HardDelete {
			return convs.SoftDelete(ctx, conversationID)
		}

		result.Purged = true
		if err := statuses.DeleteByConversation(ctx, conversationID); err != nil {
			return err
		}
		if err := e.messages.WithTx(tx).DeleteByConversation(ctx, conversationID); err != nil {
			return err
		}
		return convs.HardDelete(ctx, conversationID)
	})
	if err != nil {
		return DeleteResult{}, common.TransientIO(err)
	}

	metrics.StatusTransitions.WithLabelValues(domain.StatusDeleted.String()).Add(float64(changed))
	e.logger.Info().
		Str("conversation_id", conversationID).
		Str("user_id", user).
		Bool("removed", result.Removed).
		Bool("purged", result.Purged).
		Msg("conversation deleted")

	e.after(ctx, hook.ConversationAfterDelete, &hook.Payload{
		ActorID:        user,
		ConversationID: conversationID,
		Data: map[string]interface{}{
			"hard_deleted": result.Removed,
			"purged":       result.Purged,
		},
	})
	return result, nil
}

// ListConversations conversations in which userID still has a visible message
func (e *conversationEngine) ListConversations(ctx context.Context, userID string, q ConversationQuery) ([]domain.ConversationSummary, error) {
	user, err := e.actor(userID)
	if err != nil {
		return nil, err
	}

	var rel *domain.RelationRef
	if q.Relation != nil {
		n, err := q.Relation.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		rel = &n
	}

	convs, err := e.conversations.ListForUser(ctx, user, rel, q.Offset, q.Limit)
	if err != nil {
		return nil, common.TransientIO(err)
	}

	ids := lo.Map(convs, func(c *domain.Conversation, _ int) string { return c.ID })
	unread, err := e.statuses.CountUnreadByConversation(ctx, user, ids)
	if err != nil {
		return nil, common.TransientIO(err)
	}

	return lo.Map(convs, func(c *domain.Conversation, _ int) domain.ConversationSummary {
		return domain.ConversationSummary{Conversation: c, UnreadCount: unread[c.ID]}
	}), nil
}

// GetConversation a conversation as seen by one of its participants
func (e *conversationEngine) GetConversation(ctx context.Context, actorID, conversationID, locale string) (*domain.ConversationDetail, error) {
	actor, err := e.actor(actorID)
	if err != nil {
		return nil, err
	}
	conv, err := e.memberOf(ctx, conversationID, actor)
	if err != nil {
		return nil, err
	}

	unread, err := e.statuses.CountUnread(ctx, conversationID, actor)
	if err != nil {
		return nil, common.TransientIO(err)
	}
	total, err := e.messages.CountByConversation(ctx, conversationID)
	if err != nil {
		return nil, common.TransientIO(err)
	}
	detail := &domain.ConversationDetail{Conversation: conv, UnreadCount: unread, MessageCount: total}

	if conv.TypeID != nil {
		name, err := e.ConversationTypeName(ctx, *conv.TypeID, locale)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		detail.TypeName = name
	}
	return detail, nil
}

// CreateConversationType registers a conversation type with per-locale names
func (e *conversationEngine) CreateConversationType(ctx context.Context, slug string, names map[string]string) (*domain.ConversationType, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", common.ErrInvalidInput)
	}

	cleaned := make(map[string]string, len(names))
	for locale, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			cleaned[normalizeLocale(locale)] = name
		}
	}

	t := &domain.ConversationType{Slug: slug, Names: domain.NewLocaleNames(cleaned), CreatedAt: e.now()}
	if err := e.conversations.CreateType(ctx, t); err != nil {
		return nil, common.TransientIO(err)
	}
	return t, nil
}

// ConversationTypeName resolves a type's display name: exact locale, its
// base language, the fallback locale, then the slug
func (e *conversationEngine) ConversationTypeName(ctx context.Context, typeID uint, locale string) (string, error) {
	t, err := e.conversations.FindType(ctx, typeID)
	if err != nil {
		return "", common.TransientIO(err)
	}
	return t.Name(localeChain(locale, e.fallbackLocale)...), nil
}

// normalizeLocale "en_US" -> "en-us"
func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

// localeChain lookup order for a requested locale
func localeChain(locale, fallback string) []string {
	var chain []string
	for _, l := range []string{locale, fallback} {
		l = normalizeLocale(l)
		if l == "" {
			continue
		}
		chain = append(chain, l)
		if base, _, ok := strings.Cut(l, "-"); ok {
			chain = append(chain, base)
		}
	}
	return lo.Uniq(chain)
}
