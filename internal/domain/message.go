package domain

import (
	"time"

	"gorm.io/datatypes"
)

// MessageKind kind of message body
type MessageKind string

const (
	MessageKindText       MessageKind = "text"
	MessageKindAnchor     MessageKind = "anchor"
	MessageKindAttachment MessageKind = "attachment"
)

// Valid reports whether k is a known kind
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindAnchor, MessageKindAttachment:
		return true
	}
	return false
}

// Message a message posted into a conversation (msg_messages)
type Message struct {
	CreatedAt      time.Time    `gorm:"column:created_at;index" json:"created_at"`
	EditedAt       *time.Time   `gorm:"column:edited_at" json:"edited_at,omitempty"`
	SenderID       *string      `gorm:"column:sender_id;size:64;index" json:"sender_id"`
	ID             uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationID string       `gorm:"column:conversation_id;size:36;index" json:"conversation_id"`
	Kind           MessageKind  `gorm:"column:kind;size:16;not null" json:"kind"`
	Content        string       `gorm:"column:content;type:text" json:"content"`
	IsEdited       bool         `gorm:"column:is_edited;not null;default:false" json:"is_edited"`
	Attachments    []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	Reactions      []Reaction   `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// TableName returns the table name for messages
func (Message) TableName() string {
	return "msg_messages"
}

// SentBy reports whether userID authored the message
func (m *Message) SentBy(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// Sender returns the sender id or "" for a removed sender
func (m *Message) Sender() string {
	if m.SenderID == nil {
		return ""
	}
	return *m.SenderID
}

// Attachment file linked to a message; the file itself lives in the attachment subsystem
type Attachment struct {
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	Meta      datatypes.JSON `gorm:"column:meta" json:"meta,omitempty"`
	ID        uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MessageID uint64         `gorm:"column:message_id;index" json:"message_id"`
	Size      int64          `gorm:"column:size" json:"size"`
	FileName  string         `gorm:"column:file_name;size:255" json:"file_name"`
	MimeType  string         `gorm:"column:mime_type;size:100" json:"mime_type"`
	URL       string         `gorm:"column:url;size:1024" json:"url"`
}

// TableName returns the table name for attachments
func (Attachment) TableName() string {
	return "msg_attachments"
}

// Reaction a user's reaction to a message (msg_reactions)
type Reaction struct {
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	MessageID uint64    `gorm:"column:message_id;primaryKey;autoIncrement:false" json:"message_id"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:64" json:"user_id"`
	Reaction  string    `gorm:"column:reaction;primaryKey;size:50" json:"reaction"`
}

// TableName returns the table name for reactions
func (Reaction) TableName() string {
	return "msg_reactions"
}

// MessageView a message as seen by one user, with that user's status
type MessageView struct {
	Message  *Message `json:"message"`
	Status   Status   `json:"status"`
	IsSender bool     `json:"is_sender"`
}
