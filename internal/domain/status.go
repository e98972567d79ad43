package domain

import (
	"fmt"
	"strings"
)

// Status per-(message, user) delivery state
type Status int

const (
	StatusDeleted  Status = 0
	StatusUnread   Status = 1
	StatusRead     Status = 2
	StatusArchived Status = 3
)

// Valid reports whether s is one of the four known values
func (s Status) Valid() bool {
	return s >= StatusDeleted && s <= StatusArchived
}

// Disposed reports whether the user has put the message away (deleted or archived)
func (s Status) Disposed() bool {
	return s == StatusDeleted || s == StatusArchived
}

func (s Status) String() string {
	switch s {
	case StatusDeleted:
		return "deleted"
	case StatusUnread:
		return "unread"
	case StatusRead:
		return "read"
	case StatusArchived:
		return "archived"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus parses a status name ("read", "unread", ...)
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deleted":
		return StatusDeleted, nil
	case "unread":
		return StatusUnread, nil
	case "read":
		return StatusRead, nil
	case "archived":
		return StatusArchived, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// DisposedStatuses statuses that no longer count as visible
var DisposedStatuses = []Status{StatusDeleted, StatusArchived}

// MessageStatus one row per (message, user): the read receipt record
type MessageStatus struct {
	MessageID      uint64 `gorm:"column:message_id;primaryKey;autoIncrement:false" json:"message_id"`
	UserID         string `gorm:"column:user_id;primaryKey;size:64;index:idx_status_conv_user,priority:2" json:"user_id"`
	ConversationID string `gorm:"column:conversation_id;size:36;index:idx_status_conv_user,priority:1" json:"conversation_id"`
	Self           bool   `gorm:"column:is_self;not null;default:false" json:"self"`
	Status         Status `gorm:"column:status;not null;index" json:"status"`
}

// TableName returns the table name for message statuses
func (MessageStatus) TableName() string {
	return "msg_message_statuses"
}
