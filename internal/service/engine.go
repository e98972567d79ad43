package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/hook"
	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ConversationEngine orchestrates conversations, messages and per-user statuses.
// It is the only writer of rules that span the three stores.
type ConversationEngine interface {
	// conversations
	CreateConversation(ctx context.Context, actorID string, in CreateConversationInput) (*domain.Conversation, *domain.Message, error)
	PostOrCreate(ctx context.Context, actorID string, participantIDs []string, content string, relation *domain.RelationRef) (*domain.Message, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) (DeleteResult, error)
	ListConversations(ctx context.Context, userID string, q ConversationQuery) ([]domain.ConversationSummary, error)
	GetConversation(ctx context.Context, actorID, conversationID, locale string) (*domain.ConversationDetail, error)
	CreateConversationType(ctx context.Context, slug string, names map[string]string) (*domain.ConversationType, error)
	ConversationTypeName(ctx context.Context, typeID uint, locale string) (string, error)

	// messages
	PostMessage(ctx context.Context, actorID, conversationID string, in PostInput) (*domain.Message, error)
	PostAttachmentMessage(ctx context.Context, actorID, conversationID, content string, files []AttachmentFile) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID, userID string, q MessageQuery) ([]domain.MessageView, error)
	EditMessage(ctx context.Context, actorID, conversationID string, messageID uint64, content string) (*domain.Message, error)
	AddReaction(ctx context.Context, actorID, conversationID string, messageID uint64, reaction string) (bool, error)
	RemoveReaction(ctx context.Context, actorID, conversationID string, messageID uint64, reaction string) (bool, error)
	Reactions(ctx context.Context, actorID, conversationID string, messageID uint64) ([]domain.Reaction, error)
	SendTyping(ctx context.Context, actorID, conversationID string) error

	// statuses
	MarkStatus(ctx context.Context, conversationID string, messageID uint64, userID string, target domain.Status) (bool, error)
	MarkAsRead(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error)
	MarkAsUnread(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error)
	MarkAsDeleted(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error)
	MarkAsArchived(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error)
	MarkAllRead(ctx context.Context, conversationID, userID string) (int64, error)
	MarkAllUnread(ctx context.Context, conversationID, userID string) (int64, error)
	ReadBy(ctx context.Context, actorID, conversationID string, messageID uint64) ([]string, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)

	// CanSubscribe authorizes realtime channel subscriptions
	CanSubscribe(ctx context.Context, userID string, ch broadcast.Channel) bool
}

// EditPolicy message editing rules
type EditPolicy struct {
	Enabled        bool
	TimeLimit      time.Duration // 0 = no limit
	MarkAsEdited   bool
	BroadcastEdits bool
}

// EditPolicyFromConfig converts the editing config section
func EditPolicyFromConfig(cfg config.EditingConfig) EditPolicy {
	return EditPolicy{
		Enabled:        cfg.Enabled,
		TimeLimit:      time.Duration(cfg.TimeLimitMinutes) * time.Minute,
		MarkAsEdited:   cfg.MarkAsEdited,
		BroadcastEdits: cfg.BroadcastEdits,
	}
}

// MessagingOptions storage behavior of posted messages
type MessagingOptions struct {
	HardDelete      bool
	MaxContentBytes int // 0 = unlimited
}

// MessagingOptionsFromConfig converts the messaging config section
func MessagingOptionsFromConfig(cfg config.MessagingConfig) MessagingOptions {
	return MessagingOptions{
		HardDelete:      cfg.HardDeleteEnabled(),
		MaxContentBytes: cfg.MaxContentBytes,
	}
}

// EngineDeps collaborators of the conversation engine
type EngineDeps struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Statuses      repository.StatusRepository
	Transactor    repository.Transactor

	Hooks       *hook.Registry
	Broadcaster *broadcast.Broadcaster
	Attachments AttachmentSubsystem

	ActorKeyKind   domain.ActorKeyKind
	Editing        EditPolicy
	Messaging      MessagingOptions
	FallbackLocale string

	// Now defaults to time.Now
	Now    func() time.Time
	Logger zerolog.Logger
}

type conversationEngine struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	statuses      repository.StatusRepository
	tx            repository.Transactor

	hooks       *hook.Registry
	broadcaster *broadcast.Broadcaster
	attachments AttachmentSubsystem

	keyKind        domain.ActorKeyKind
	editing        EditPolicy
	messaging      MessagingOptions
	fallbackLocale string

	now    func() time.Time
	logger zerolog.Logger
}

// NewConversationEngine creates a new ConversationEngine
func NewConversationEngine(deps EngineDeps) ConversationEngine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = broadcast.NewBroadcaster(nil, false, deps.Logger)
	}
	if deps.Hooks == nil {
		deps.Hooks = hook.NewRegistry(deps.Logger)
	}
	if deps.ActorKeyKind == "" {
		deps.ActorKeyKind = domain.ActorKeyInt
	}
	if deps.FallbackLocale == "" {
		deps.FallbackLocale = "ko"
	}

	return &conversationEngine{
		conversations:  deps.Conversations,
		messages:       deps.Messages,
		statuses:       deps.Statuses,
		tx:             deps.Transactor,
		hooks:          deps.Hooks,
		broadcaster:    deps.Broadcaster,
		attachments:    deps.Attachments,
		keyKind:        deps.ActorKeyKind,
		editing:        deps.Editing,
		messaging:      deps.Messaging,
		fallbackLocale: deps.FallbackLocale,
		now:            deps.Now,
		logger:         deps.Logger.With().Str("component", "engine").Logger(),
	}
}

// actor normalizes a user id for the configured key kind
func (e *conversationEngine) actor(id string) (string, error) {
	n, err := e.keyKind.Normalize(id)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	return n, nil
}

func (e *conversationEngine) actors(ids []string) ([]string, error) {
	n, err := e.keyKind.NormalizeAll(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	return n, nil
}

func (e *conversationEngine) checkContent(content string) error {
	if e.messaging.MaxContentBytes > 0 && len(content) > e.messaging.MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", common.ErrInvalidInput, e.messaging.MaxContentBytes)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: content is not valid utf-8", common.ErrInvalidInput)
	}
	return nil
}

func (e *conversationEngine) normalizeRelations(refs []domain.RelationRef) ([]domain.RelationRef, error) {
	out := make([]domain.RelationRef, 0, len(refs))
	for _, ref := range refs {
		n, err := ref.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		out = append(out, n)
	}
	return lo.UniqBy(out, func(r domain.RelationRef) string { return r.Key() }), nil
}

// memberOf loads a live conversation and checks that userID belongs to it
func (e *conversationEngine) memberOf(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := e.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, common.TransientIO(err)
	}
	if !lo.Contains(conv.ParticipantIDs(), userID) {
		return nil, fmt.Errorf("%w: %s is not a participant", common.ErrUnauthorized, userID)
	}
	return conv, nil
}

// before runs a before-hook. Abort becomes ErrVetoed, callback errors abort as-is.
func (e *conversationEngine) before(ctx context.Context, point hook.Point, payload *hook.Payload) error {
	res, err := e.hooks.Execute(ctx, point, payload)
	if err != nil {
		return err
	}
	if res == hook.ResultAbort {
		metrics.HookVetoes.WithLabelValues(string(point)).Inc()
		return fmt.Errorf("%w by %s", common.ErrVetoed, point)
	}
	return nil
}

// after runs an after-hook; failures are logged only
func (e *conversationEngine) after(ctx context.Context, point hook.Point, payload *hook.Payload) {
	if _, err := e.hooks.Execute(ctx, point, payload); err != nil {
		e.logger.Warn().Err(err).Str("point", string(point)).Msg("after hook failed")
	}
}
