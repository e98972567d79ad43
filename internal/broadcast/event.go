package broadcast

import (
	"strconv"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/samber/lo"
)

// ChannelClass access class of a channel; drivers map it to their own naming
type ChannelClass string

const (
	ClassPrivate  ChannelClass = "private"
	ClassPresence ChannelClass = "presence"
)

// Channel a named fan-out target
type Channel struct {
	Name  string       `json:"name"`
	Class ChannelClass `json:"class"`
}

const (
	conversationPrefix = "conversation."
	userPrefix         = "user."
)

// ConversationChannel private channel of a conversation
func ConversationChannel(conversationID string) Channel {
	return Channel{Name: conversationPrefix + conversationID, Class: ClassPrivate}
}

// PresenceChannel presence channel of a conversation (typing indicators)
func PresenceChannel(conversationID string) Channel {
	return Channel{Name: conversationPrefix + conversationID, Class: ClassPresence}
}

// UserChannel private per-user channel (new conversation notices)
func UserChannel(userID string) Channel {
	return Channel{Name: userPrefix + userID, Class: ClassPrivate}
}

// ConversationID the conversation a conversation channel belongs to
func (c Channel) ConversationID() (string, bool) {
	id, ok := strings.CutPrefix(c.Name, conversationPrefix)
	return id, ok && id != ""
}

// UserID the owner of a user channel
func (c Channel) UserID() (string, bool) {
	id, ok := strings.CutPrefix(c.Name, userPrefix)
	return id, ok && id != ""
}

// Event names
const (
	EventConversationCreated  = "conversation.created"
	EventMessageSent          = "message.sent"
	EventMessageRead          = "message.read"
	EventMessageDeleted       = "message.deleted"
	EventMessageEdited        = "message.edited"
	EventMessageReactionAdded = "message.reaction_added"
	EventUserTyping           = "user.typing"
)

// Event one broadcast: a name, a JSON-serializable payload and its target channels
type Event struct {
	Channels   []Channel              `json:"channels"`
	Name       string                 `json:"event"`
	Payload    map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"timestamp"`
	// Ephemeral events are fire-and-forget (typing); relays should not persist them
	Ephemeral bool `json:"ephemeral,omitempty"`
}

// Envelope wire form of an event on a single channel
type Envelope struct {
	Event     string                 `json:"event"`
	Channel   string                 `json:"channel"`
	Class     ChannelClass           `json:"class"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Envelope builds the per-channel wire form
func (e Event) Envelope(ch Channel) Envelope {
	return Envelope{
		Event:     e.Name,
		Channel:   ch.Name,
		Class:     ch.Class,
		Data:      e.Payload,
		Timestamp: e.OccurredAt.UnixMilli(),
	}
}

func newEvent(name string, channels []Channel, payload map[string]interface{}) Event {
	return Event{
		Channels:   channels,
		Name:       name,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

func messageID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func messagePayload(msg *domain.Message) map[string]interface{} {
	attachments := lo.Map(msg.Attachments, func(a domain.Attachment, _ int) map[string]interface{} {
		return map[string]interface{}{
			"id":        a.ID,
			"file_name": a.FileName,
			"mime_type": a.MimeType,
			"size":      a.Size,
			"url":       a.URL,
		}
	})
	payload := map[string]interface{}{
		"conversation_id": msg.ConversationID,
		"message_id":      messageID(msg.ID),
		"sender_id":       msg.Sender(),
		"kind":            string(msg.Kind),
		"content":         msg.Content,
		"attachments":     attachments,
		"created_at":      msg.CreatedAt,
	}
	if msg.EditedAt != nil {
		payload["edited_at"] = *msg.EditedAt
		payload["is_edited"] = msg.IsEdited
	}
	return payload
}

// NewConversationCreated notifies every participant on their user channel
func NewConversationCreated(conv *domain.Conversation) Event {
	participants := conv.ParticipantIDs()
	channels := lo.Map(participants, func(id string, _ int) Channel { return UserChannel(id) })
	return newEvent(EventConversationCreated, channels, map[string]interface{}{
		"conversation_id": conv.ID,
		"owner_id":        conv.OwnerID,
		"title":           conv.Title,
		"participants":    participants,
		"created_at":      conv.CreatedAt,
	})
}

// NewMessageSent a message was posted
func NewMessageSent(msg *domain.Message) Event {
	return newEvent(EventMessageSent, []Channel{ConversationChannel(msg.ConversationID)}, messagePayload(msg))
}

// NewMessageRead a participant read a message; readBy lists every reader so far
func NewMessageRead(conversationID string, msgID uint64, readerID string, readBy []string) Event {
	return newEvent(EventMessageRead, []Channel{ConversationChannel(conversationID)}, map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      messageID(msgID),
		"user_id":         readerID,
		"read_by":         readBy,
		"read_count":      len(readBy),
	})
}

// NewMessageDeleted a participant deleted a message from their view
func NewMessageDeleted(conversationID string, msgID uint64, userID string) Event {
	return newEvent(EventMessageDeleted, []Channel{ConversationChannel(conversationID)}, map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      messageID(msgID),
		"user_id":         userID,
	})
}

// NewMessageEdited the sender changed a message's content
func NewMessageEdited(msg *domain.Message) Event {
	return newEvent(EventMessageEdited, []Channel{ConversationChannel(msg.ConversationID)}, messagePayload(msg))
}

// NewMessageReactionAdded a participant reacted to a message
func NewMessageReactionAdded(conversationID string, msgID uint64, userID, reaction string) Event {
	return newEvent(EventMessageReactionAdded, []Channel{ConversationChannel(conversationID)}, map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      messageID(msgID),
		"user_id":         userID,
		"reaction":        reaction,
	})
}

// NewUserTyping typing indicator on the conversation's presence channel
func NewUserTyping(conversationID, userID string) Event {
	ev := newEvent(EventUserTyping, []Channel{PresenceChannel(conversationID)}, map[string]interface{}{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	ev.Ephemeral = true
	return ev
}
