package repository

import (
	"context"
	"math"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListQuery paging and ordering for message listings. Limit <= 0 lists everything.
type ListQuery struct {
	Chronological bool
	Offset        int
	Limit         int
}

// paginate offset/limit scope; limit <= 0 is unbounded
func paginate(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset < 0 {
			offset = 0
		}
		switch {
		case limit > 0:
			return db.Offset(offset).Limit(limit)
		case offset > 0:
			// OFFSET 단독은 mysql/sqlite 모두 문법 오류
			return db.Offset(offset).Limit(math.MaxInt32)
		default:
			return db
		}
	}
}

// MessageRepository message data access interface
type MessageRepository interface {
	WithTx(tx *gorm.DB) MessageRepository

	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id uint64) (*domain.Message, error)
	FindInConversation(ctx context.Context, conversationID string, id uint64) (*domain.Message, error)
	ListVisible(ctx context.Context, conversationID, userID string, q ListQuery) ([]domain.MessageView, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
	UpdateContent(ctx context.Context, id uint64, content string, editedAt time.Time, markEdited bool) error

	AddReaction(ctx context.Context, reaction *domain.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID uint64, userID, reaction string) (bool, error)
	Reactions(ctx context.Context, messageIDs []uint64) ([]domain.Reaction, error)

	DeleteByConversation(ctx context.Context, conversationID string) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) WithTx(tx *gorm.DB) MessageRepository {
	return &messageRepository{db: tx}
}

// Create inserts the message together with its attachment rows
func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Omit("Reactions").Create(msg).Error
}

// FindByID finds a message by ID
func (r *messageRepository) FindByID(ctx context.Context, id uint64) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("Reactions").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindInConversation finds a message that belongs to the given conversation
func (r *messageRepository) FindInConversation(ctx context.Context, conversationID string, id uint64) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("Reactions").
		Where("id = ? AND conversation_id = ?", id, conversationID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

type visibleRow struct {
	MessageID uint64
	Status    domain.Status
}

// ListVisible returns the user's messages whose status is neither deleted nor archived
func (r *messageRepository) ListVisible(ctx context.Context, conversationID, userID string, q ListQuery) ([]domain.MessageView, error) {
	order := "m.id DESC"
	if q.Chronological {
		order = "m.id ASC"
	}

	var rows []visibleRow
	err := r.db.WithContext(ctx).Table("msg_message_statuses AS s").
		Select("s.message_id AS message_id, s.status AS status").
		Joins("JOIN msg_messages AS m ON m.id = s.message_id").
		Where("m.conversation_id = ? AND s.user_id = ? AND s.status NOT IN ?", conversationID, userID, domain.DisposedStatuses).
		Order(order).
		Scopes(paginate(q.Offset, q.Limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.MessageView{}, nil
	}

	var messages []*domain.Message
	ids := lo.Map(rows, func(row visibleRow, _ int) uint64 { return row.MessageID })
	err = r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("Reactions").
		Where("id IN ?", ids).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	byID := lo.KeyBy(messages, func(m *domain.Message) uint64 { return m.ID })
	views := make([]domain.MessageView, 0, len(rows))
	for _, row := range rows {
		msg, ok := byID[row.MessageID]
		if !ok {
			continue
		}
		views = append(views, domain.MessageView{
			Message:  msg,
			Status:   row.Status,
			IsSender: msg.SentBy(userID),
		})
	}
	return views, nil
}

func (r *messageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// UpdateContent replaces the body and stamps edited_at
func (r *messageRepository) UpdateContent(ctx context.Context, id uint64, content string, editedAt time.Time, markEdited bool) error {
	updates := map[string]interface{}{
		"content":   content,
		"edited_at": editedAt,
	}
	if markEdited {
		updates["is_edited"] = true
	}
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// AddReaction inserts the reaction; returns false when the user already reacted the same way
func (r *messageRepository) AddReaction(ctx context.Context, reaction *domain.Reaction) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reaction)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID uint64, userID, reaction string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND reaction = ?", messageID, userID, reaction).
		Delete(&domain.Reaction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) Reactions(ctx context.Context, messageIDs []uint64) ([]domain.Reaction, error) {
	var reactions []domain.Reaction
	if len(messageIDs) == 0 {
		return reactions, nil
	}
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, err
}

// DeleteByConversation removes every message of the conversation with attachments and reactions
func (r *messageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	db := r.db.WithContext(ctx)
	ids := r.db.Session(&gorm.Session{NewDB: true}).Model(&domain.Message{}).
		Select("id").
		Where("conversation_id = ?", conversationID)

	if err := db.Where("message_id IN (?)", ids).Delete(&domain.Reaction{}).Error; err != nil {
		return err
	}
	if err := db.Where("message_id IN (?)", ids).Delete(&domain.Attachment{}).Error; err != nil {
		return err
	}
	return db.Where("conversation_id = ?", conversationID).Delete(&domain.Message{}).Error
}
