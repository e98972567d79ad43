package domain

import (
	"time"

	"gorm.io/gorm"
)

// Conversation a multi-party thread (msg_conversations)
type Conversation struct {
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
	TypeID    *uint          `gorm:"column:type_id;index" json:"type_id,omitempty"`
	ID        string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	OwnerID   string         `gorm:"column:owner_id;size:64;index" json:"owner_id"`
	Title     string         `gorm:"column:title;size:255" json:"title,omitempty"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	Relations    []Relation    `gorm:"foreignKey:ConversationID" json:"relations,omitempty"`
}

// TableName returns the table name for conversations
func (Conversation) TableName() string {
	return "msg_conversations"
}

// ParticipantIDs returns the ids of the loaded participants
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, len(c.Participants))
	for i, p := range c.Participants {
		ids[i] = p.UserID
	}
	return ids
}

// Participant conversation membership (msg_participants)
type Participant struct {
	JoinedAt       time.Time `gorm:"column:joined_at" json:"joined_at"`
	ConversationID string    `gorm:"column:conversation_id;primaryKey;size:36" json:"conversation_id"`
	UserID         string    `gorm:"column:user_id;primaryKey;size:64;index" json:"user_id"`
}

// TableName returns the table name for participants
func (Participant) TableName() string {
	return "msg_participants"
}

// Relation link between a conversation and an external entity (msg_relations)
type Relation struct {
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	ID             uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ConversationID string         `gorm:"column:conversation_id;size:36;uniqueIndex:uk_relation,priority:1" json:"conversation_id"`
	RelatedType    string         `gorm:"column:related_type;size:100;uniqueIndex:uk_relation,priority:2;index:idx_relation_target,priority:1" json:"type"`
	RelatedKind    RelationIDKind `gorm:"column:related_kind;size:8;uniqueIndex:uk_relation,priority:3;index:idx_relation_target,priority:2" json:"kind"`
	RelatedID      string         `gorm:"column:related_id;size:64;uniqueIndex:uk_relation,priority:4;index:idx_relation_target,priority:3" json:"id"`
}

// TableName returns the table name for relations
func (Relation) TableName() string {
	return "msg_relations"
}

// Ref returns the relation's external reference
func (r Relation) Ref() RelationRef {
	return RelationRef{Type: r.RelatedType, Kind: r.RelatedKind, ID: r.RelatedID}
}

// ConversationType classification with per-locale display names (msg_conversation_types)
type ConversationType struct {
	CreatedAt time.Time   `gorm:"column:created_at" json:"created_at"`
	Names     LocaleNames `gorm:"column:names" json:"names"`
	ID        uint        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Slug      string      `gorm:"column:slug;size:100;uniqueIndex" json:"slug"`
}

// TableName returns the table name for conversation types
func (ConversationType) TableName() string {
	return "msg_conversation_types"
}

// Name returns the name of the first locale that has one, or the slug
func (t *ConversationType) Name(locales ...string) string {
	names := t.Names.Data()
	for _, locale := range locales {
		if n := names[locale]; n != "" {
			return n
		}
	}
	return t.Slug
}

// ConversationSummary list entry with the caller's unread count
type ConversationSummary struct {
	Conversation *Conversation `json:"conversation"`
	UnreadCount  int64         `json:"unread_count"`
}

// ConversationDetail single conversation as seen by one participant
type ConversationDetail struct {
	Conversation *Conversation `json:"conversation"`
	TypeName     string        `json:"type_name,omitempty"`
	UnreadCount  int64         `json:"unread_count"`
	MessageCount int64         `json:"message_count"`
}
