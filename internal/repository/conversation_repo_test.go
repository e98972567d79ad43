package repository

import (
	"context"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConversationRepository_AddParticipantsIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepository(db)

	conv := seedConversation(t, db, "1", "2")
	require.NoError(t, repo.AddParticipants(ctx, conv.ID, []string{"2", "3", "3"}, time.Now()))

	ids, err := repo.Participants(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	ok, err := repo.IsParticipant(ctx, conv.ID, "3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsParticipant(ctx, conv.ID, "4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConversationRepository_AddRelationsDeduplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepository(db)

	conv := seedConversation(t, db, "1", "2")
	ticket := domain.RelationRef{Type: "ticket", Kind: domain.RelationIDInt, ID: "42"}
	require.NoError(t, repo.AddRelations(ctx, conv.ID, []domain.RelationRef{ticket, ticket}, time.Now()))
	require.NoError(t, repo.AddRelations(ctx, conv.ID, []domain.RelationRef{ticket}, time.Now()))

	relations, err := repo.Relations(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, ticket, relations[0].Ref())
}

func TestConversationRepository_FindByExactParticipants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepository(db)

	pair := seedConversation(t, db, "1", "2")
	trio := seedConversation(t, db, "1", "2", "3")

	found, err := repo.FindByExactParticipants(ctx, []string{"2", "1"}, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pair.ID, found.ID)

	found, err = repo.FindByExactParticipants(ctx, []string{"1", "2", "3"}, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, trio.ID, found.ID)

	found, err = repo.FindByExactParticipants(ctx, []string{"1", "3"}, nil)
	require.NoError(t, err)
	assert.Nil(t, found)

	ticket := domain.RelationRef{Type: "ticket", Kind: domain.RelationIDInt, ID: "7"}
	found, err = repo.FindByExactParticipants(ctx, []string{"1", "2"}, &ticket)
	require.NoError(t, err)
	assert.Nil(t, found, "relation filter excludes the unrelated pair")

	require.NoError(t, repo.AddRelations(ctx, pair.ID, []domain.RelationRef{ticket}, time.Now()))
	found, err = repo.FindByExactParticipants(ctx, []string{"1", "2"}, &ticket)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pair.ID, found.ID)
}

func TestConversationRepository_ListForUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepository(db)
	statuses := NewStatusRepository(db)

	older := seedConversation(t, db, "1", "2")
	newer := seedConversation(t, db, "1", "3")
	seedConversation(t, db, "1", "4")

	seedMessage(t, db, older, "2", "1", "2")
	seedMessage(t, db, newer, "3", "1", "3")
	require.NoError(t, repo.Touch(ctx, older.ID, time.Now().Add(-time.Hour)))
	require.NoError(t, repo.Touch(ctx, newer.ID, time.Now()))

	convs, err := repo.ListForUser(ctx, "1", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, convs, 2, "conversations without messages are not listed")
	assert.Equal(t, newer.ID, convs[0].ID)
	assert.Equal(t, older.ID, convs[1].ID)
	assert.Equal(t, []string{"1", "3"}, convs[0].ParticipantIDs())

	_, err = statuses.SetAllForUser(ctx, newer.ID, "1", domain.StatusArchived)
	require.NoError(t, err)
	convs, err = repo.ListForUser(ctx, "1", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, older.ID, convs[0].ID)
}

func TestConversationRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepository(db)

	soft := seedConversation(t, db, "1", "2")
	require.NoError(t, repo.SoftDelete(ctx, soft.ID))
	_, err := repo.FindByID(ctx, soft.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	hard := seedConversation(t, db, "1", "2")
	require.NoError(t, repo.AddRelations(ctx, hard.ID, []domain.RelationRef{{Type: "order", Kind: domain.RelationIDInt, ID: "1"}}, time.Now()))
	require.NoError(t, repo.HardDelete(ctx, hard.ID))

	var count int64
	require.NoError(t, db.Unscoped().Model(&domain.Conversation{}).Where("id = ?", hard.ID).Count(&count).Error)
	assert.Zero(t, count)
	ids, err := repo.Participants(ctx, hard.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	relations, err := repo.Relations(ctx, hard.ID)
	require.NoError(t, err)
	assert.Empty(t, relations)
}

func TestConversationRepository_Types(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewConversationRepository(db)

	typ := &domain.ConversationType{Slug: "billing", Names: domain.NewLocaleNames(map[string]string{"en": "Billing"})}
	require.NoError(t, repo.CreateType(ctx, typ))

	found, err := repo.FindType(ctx, typ.ID)
	require.NoError(t, err)
	assert.Equal(t, "Billing", found.Name("ko", "en"))
	assert.Equal(t, "billing", found.Name("ko", "ja"))
}
