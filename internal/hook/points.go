package hook

// Point named extension point
type Point string

// Conversation hooks
const (
	ConversationBeforeCreate Point = "conversation.before_create"
	ConversationAfterCreate  Point = "conversation.after_create"
	ConversationBeforeDelete Point = "conversation.before_delete"
	ConversationAfterDelete  Point = "conversation.after_delete"
)

// Message hooks
const (
	MessageBeforeAdd          Point = "message.before_add"
	MessageAfterAdd           Point = "message.after_add"
	MessageBeforeMarkAsRead   Point = "message.before_mark_as_read"
	MessageAfterMarkAsRead    Point = "message.after_mark_as_read"
	MessageBeforeMarkAsDelete Point = "message.before_mark_as_deleted"
	MessageAfterMarkAsDelete  Point = "message.after_mark_as_deleted"
	MessageBeforeEdit         Point = "message.before_edit"
	MessageAfterEdit          Point = "message.after_edit"
)

// Points all extension points the engine fires
var Points = []Point{
	ConversationBeforeCreate, ConversationAfterCreate,
	ConversationBeforeDelete, ConversationAfterDelete,
	MessageBeforeAdd, MessageAfterAdd,
	MessageBeforeMarkAsRead, MessageAfterMarkAsRead,
	MessageBeforeMarkAsDelete, MessageAfterMarkAsDelete,
	MessageBeforeEdit, MessageAfterEdit,
}

// Known reports whether p is one of Points
func (p Point) Known() bool {
	for _, known := range Points {
		if p == known {
			return true
		}
	}
	return false
}
