package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/hook"
	"github.com/damoang/angple-messenger/internal/metrics"
	"gorm.io/gorm"
)

// casAttempts retries of the status compare-and-set when a concurrent writer wins
const casAttempts = 3

// statusHooks before/after points of the transitions that notify other participants
var statusHooks = map[domain.Status][2]hook.Point{
	domain.StatusRead:    {hook.MessageBeforeMarkAsRead, hook.MessageAfterMarkAsRead},
	domain.StatusDeleted: {hook.MessageBeforeMarkAsDelete, hook.MessageAfterMarkAsDelete},
}

// MarkStatus moves userID's status row for a message to target.
// Returns false without side effects when the row already has that status or
// belongs to the sender.
func (e *conversationEngine) MarkStatus(ctx context.Context, conversationID string, messageID uint64, userID string, target domain.Status) (bool, error) {
	if !target.Valid() {
		return false, fmt.Errorf("%w: %d", common.ErrInvalidStatus, int(target))
	}
	user, err := e.actor(userID)
	if err != nil {
		return false, err
	}

	msg, err := e.messages.FindInConversation(ctx, conversationID, messageID)
	if err != nil {
		return false, common.TransientIO(err)
	}
	if msg.SentBy(user) {
		return false, nil
	}

	row, err := e.statuses.Find(ctx, messageID, user)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, merr := e.memberOf(ctx, conversationID, user); merr != nil {
				return false, merr
			}
		}
		return false, common.TransientIO(err)
	}
	if row.Self || row.Status == target {
		return false, nil
	}

	points, notify := statusHooks[target]
	if notify {
		payload := &hook.Payload{
			ActorID:        user,
			ConversationID: conversationID,
			MessageID:      messageID,
			Data:           map[string]interface{}{"from": row.Status.String(), "to": target.String()},
		}
		if err := e.before(ctx, points[0], payload); err != nil {
			return false, err
		}
	}

	from := row.Status
	changed := false
	for attempt := 0; attempt < casAttempts; attempt++ {
		ok, err := e.statuses.CompareAndSet(ctx, messageID, user, from, target)
		if err != nil {
			return false, common.TransientIO(err)
		}
		if ok {
			changed = true
			break
		}

		// another writer moved the row; re-read and try again from its new state
		current, err := e.statuses.Find(ctx, messageID, user)
		if err != nil {
			return false, common.TransientIO(err)
		}
		if current.Status == target {
			return false, nil
		}
		from = current.Status
	}
	if !changed {
		return false, fmt.Errorf("%w: status of message %d kept changing", common.ErrTransientIO, messageID)
	}

	metrics.StatusTransitions.WithLabelValues(target.String()).Inc()
	if !notify {
		return true, nil
	}

	switch target {
	case domain.StatusRead:
		readBy, err := e.statuses.UsersWithStatus(ctx, messageID, domain.StatusRead)
		if err != nil {
			e.logger.Warn().Err(err).Uint64("message_id", messageID).Msg("read-by lookup failed")
		}
		e.broadcaster.Broadcast(ctx, broadcast.NewMessageRead(conversationID, messageID, user, readBy))
	case domain.StatusDeleted:
		e.broadcaster.Broadcast(ctx, broadcast.NewMessageDeleted(conversationID, messageID, user))
	}

	e.after(ctx, points[1], &hook.Payload{
		ActorID:        user,
		ConversationID: conversationID,
		MessageID:      messageID,
		Data:           map[string]interface{}{"from": from.String(), "to": target.String()},
	})
	return true, nil
}

func (e *conversationEngine) MarkAsRead(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error) {
	return e.MarkStatus(ctx, conversationID, messageID, userID, domain.StatusRead)
}

func (e *conversationEngine) MarkAsUnread(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error) {
	return e.MarkStatus(ctx, conversationID, messageID, userID, domain.StatusUnread)
}

func (e *conversationEngine) MarkAsDeleted(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error) {
	return e.MarkStatus(ctx, conversationID, messageID, userID, domain.StatusDeleted)
}

func (e *conversationEngine) MarkAsArchived(ctx context.Context, conversationID string, messageID uint64, userID string) (bool, error) {
	return e.MarkStatus(ctx, conversationID, messageID, userID, domain.StatusArchived)
}

// MarkAllRead flips every unread message userID did not send in the conversation. Silent.
func (e *conversationEngine) MarkAllRead(ctx context.Context, conversationID, userID string) (int64, error) {
	return e.markAll(ctx, conversationID, userID, domain.StatusUnread, domain.StatusRead)
}

// MarkAllUnread flips every read message userID did not send in the conversation. Silent.
func (e *conversationEngine) MarkAllUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	return e.markAll(ctx, conversationID, userID, domain.StatusRead, domain.StatusUnread)
}

func (e *conversationEngine) markAll(ctx context.Context, conversationID, userID string, from, to domain.Status) (int64, error) {
	user, err := e.actor(userID)
	if err != nil {
		return 0, err
	}
	if _, err := e.memberOf(ctx, conversationID, user); err != nil {
		return 0, err
	}

	n, err := e.statuses.BulkTransition(ctx, conversationID, user, from, to)
	if err != nil {
		return 0, common.TransientIO(err)
	}
	metrics.StatusTransitions.WithLabelValues(to.String()).Add(float64(n))
	return n, nil
}

// ReadBy participants other than the sender who have read the message
func (e *conversationEngine) ReadBy(ctx context.Context, actorID, conversationID string, messageID uint64) ([]string, error) {
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

	users, err := e.statuses.UsersWithStatus(ctx, messageID, domain.StatusRead)
	if err != nil {
		return nil, common.TransientIO(err)
	}
	return users, nil
}

// UnreadCount unread messages across all of userID's conversations
func (e *conversationEngine) UnreadCount(ctx context.Context, userID string) (int64, error) {
	user, err := e.actor(userID)
	if err != nil {
		return 0, err
	}
	n, err := e.statuses.CountUnreadTotal(ctx, user)
	if err != nil {
		return 0, common.TransientIO(err)
	}
	return n, nil
}

// CanSubscribe reports whether userID may listen on ch: its own user channel
// or the channels of conversations it participates in
func (e *conversationEngine) CanSubscribe(ctx context.Context, userID string, ch broadcast.Channel) bool {
	user, err := e.actor(userID)
	if err != nil {
		return false
	}
	if owner, ok := ch.UserID(); ok {
		return owner == user
	}
	if conversationID, ok := ch.ConversationID(); ok {
		_, err := e.memberOf(ctx, conversationID, user)
		return err == nil
	}
	return false
}
