package domain

// CreateConversationRequest POST /conversations
type CreateConversationRequest struct {
	ParticipantIDs []string      `json:"participant_ids" validate:"required,min=1,max=100,dive,required,max=64"`
	Relations      []RelationRef `json:"relations" validate:"max=20,dive"`
	Title          string        `json:"title" validate:"max=255"`
	TypeID         *uint         `json:"type_id" validate:"omitempty,min=1"`
	// 첫 메시지 (선택)
	Content *string `json:"content" validate:"omitempty,min=1"`
}

// DirectMessageRequest POST /messages/direct
// Posts into the conversation with exactly these participants, creating it if needed.
type DirectMessageRequest struct {
	ParticipantIDs []string     `json:"participant_ids" validate:"required,min=1,max=100,dive,required,max=64"`
	Content        string       `json:"content" validate:"required"`
	Relation       *RelationRef `json:"relation"`
}

// PostMessageRequest POST /conversations/:id/messages
type PostMessageRequest struct {
	Content  string      `json:"content" validate:"required"`
	Kind     MessageKind `json:"kind" validate:"omitempty,oneof=text anchor"`
	AutoJoin bool        `json:"auto_join"`
}

// EditMessageRequest PATCH /conversations/:id/messages/:mid
type EditMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ReactionRequest POST/DELETE /conversations/:id/messages/:mid/reactions
type ReactionRequest struct {
	Reaction string `json:"reaction" validate:"required,max=50"`
}

// CreateConversationTypeRequest POST /conversation-types
type CreateConversationTypeRequest struct {
	Slug  string            `json:"slug" validate:"required,max=100"`
	Names map[string]string `json:"names" validate:"max=50,dive,keys,min=2,max=16,endkeys,max=100"`
}

// StatusChangeResponse result of a per-message status change
type StatusChangeResponse struct {
	MessageID uint64 `json:"message_id"`
	Status    string `json:"status"`
	Changed   bool   `json:"changed"`
}
