package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.Run(db))
	return db
}

// seedConversation creates a conversation with the given members
func seedConversation(t *testing.T, db *gorm.DB, members ...string) *domain.Conversation {
	t.Helper()
	ctx := context.Background()
	repo := NewConversationRepository(db)
	now := time.Now()

	conv := &domain.Conversation{ID: uuid.NewString(), OwnerID: members[0], CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, conv))
	require.NoError(t, repo.AddParticipants(ctx, conv.ID, members, now))
	return conv
}

// seedMessage posts content from sender with one status row per member
func seedMessage(t *testing.T, db *gorm.DB, conv *domain.Conversation, sender string, members ...string) *domain.Message {
	t.Helper()
	ctx := context.Background()

	msg := &domain.Message{ConversationID: conv.ID, SenderID: &sender, Kind: domain.MessageKindText, Content: "hi"}
	require.NoError(t, NewMessageRepository(db).Create(ctx, msg))

	statuses := make([]domain.MessageStatus, 0, len(members))
	for _, m := range members {
		st := domain.MessageStatus{MessageID: msg.ID, UserID: m, ConversationID: conv.ID, Status: domain.StatusUnread}
		if m == sender {
			st.Self = true
			st.Status = domain.StatusRead
		}
		statuses = append(statuses, st)
	}
	require.NoError(t, NewStatusRepository(db).CreateMany(ctx, statuses))
	return msg
}
