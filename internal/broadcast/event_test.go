package broadcast

import (
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationCreated_TargetsEveryParticipant(t *testing.T) {
	conv := &domain.Conversation{
		ID:      "c1",
		OwnerID: "1",
		Participants: []domain.Participant{
			{ConversationID: "c1", UserID: "1"},
			{ConversationID: "c1", UserID: "2"},
		},
	}

	ev := NewConversationCreated(conv)
	assert.Equal(t, EventConversationCreated, ev.Name)
	assert.Equal(t, []Channel{UserChannel("1"), UserChannel("2")}, ev.Channels)
	assert.Equal(t, []string{"1", "2"}, ev.Payload["participants"])
}

func TestNewMessageSent_Payload(t *testing.T) {
	sender := "5"
	msg := &domain.Message{
		ID:             42,
		ConversationID: "c9",
		SenderID:       &sender,
		Kind:           domain.MessageKindText,
		Content:        "hello",
		CreatedAt:      time.Now(),
	}

	ev := NewMessageSent(msg)
	require.Len(t, ev.Channels, 1)
	assert.Equal(t, Channel{Name: "conversation.c9", Class: ClassPrivate}, ev.Channels[0])
	assert.Equal(t, "42", ev.Payload["message_id"])
	assert.Equal(t, "5", ev.Payload["sender_id"])
	assert.Equal(t, "hello", ev.Payload["content"])
	assert.NotContains(t, ev.Payload, "edited_at")
}

func TestNewMessageRead_CountsReaders(t *testing.T) {
	ev := NewMessageRead("c1", 3, "2", []string{"2", "4"})
	assert.Equal(t, 2, ev.Payload["read_count"])
	assert.Equal(t, []string{"2", "4"}, ev.Payload["read_by"])
}

func TestNewUserTyping_IsEphemeralPresence(t *testing.T) {
	ev := NewUserTyping("c1", "7")
	assert.True(t, ev.Ephemeral)
	assert.Equal(t, []Channel{{Name: "conversation.c1", Class: ClassPresence}}, ev.Channels)
}

func TestEnvelope(t *testing.T) {
	ev := NewMessageReactionAdded("c1", 3, "2", "👍")
	env := ev.Envelope(ev.Channels[0])

	assert.Equal(t, EventMessageReactionAdded, env.Event)
	assert.Equal(t, "conversation.c1", env.Channel)
	assert.Equal(t, ClassPrivate, env.Class)
	assert.Equal(t, "👍", env.Data["reaction"])
	assert.Equal(t, ev.OccurredAt.UnixMilli(), env.Timestamp)
}

func conversationWith(id string, members ...string) *domain.Conversation {
	conv := &domain.Conversation{ID: id, OwnerID: members[0]}
	for _, m := range members {
		conv.Participants = append(conv.Participants, domain.Participant{ConversationID: id, UserID: m})
	}
	return conv
}

func messageIn(conversationID string) *domain.Message {
	sender := "1"
	return &domain.Message{ID: 1, ConversationID: conversationID, SenderID: &sender, Kind: domain.MessageKindText, Content: "hi"}
}

func TestChannel_Targets(t *testing.T) {
	id, ok := ConversationChannel("c1").ConversationID()
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok = UserChannel("7").ConversationID()
	assert.False(t, ok)

	uid, ok := UserChannel("7").UserID()
	assert.True(t, ok)
	assert.Equal(t, "7", uid)

	_, ok = Channel{Name: "user."}.UserID()
	assert.False(t, ok)
}
