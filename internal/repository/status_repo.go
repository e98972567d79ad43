package repository

import (
	"context"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// StatusRepository per-(message, user) status data access interface
type StatusRepository interface {
	WithTx(tx *gorm.DB) StatusRepository

	CreateMany(ctx context.Context, statuses []domain.MessageStatus) error
	Find(ctx context.Context, messageID uint64, userID string) (*domain.MessageStatus, error)
	ListForMessage(ctx context.Context, messageID uint64) ([]domain.MessageStatus, error)

	// CompareAndSet moves a non-self row from one status to another.
	// Returns false when the row was not in the expected state.
	CompareAndSet(ctx context.Context, messageID uint64, userID string, from, to domain.Status) (bool, error)
	// BulkTransition flips the user's rows in a conversation from one status to
	// another, skipping messages the user sent.
	BulkTransition(ctx context.Context, conversationID, userID string, from, to domain.Status) (int64, error)
	// SetAllForUser sets every row the user owns in the conversation, own messages included
	SetAllForUser(ctx context.Context, conversationID, userID string, to domain.Status) (int64, error)

	CountActive(ctx context.Context, conversationID string) (int64, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int64, error)
	CountUnreadByConversation(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error)
	CountUnreadTotal(ctx context.Context, userID string) (int64, error)
	UsersWithStatus(ctx context.Context, messageID uint64, status domain.Status) ([]string, error)

	DeleteByConversation(ctx context.Context, conversationID string) error
}

type statusRepository struct {
	db *gorm.DB
}

// NewStatusRepository creates a new StatusRepository
func NewStatusRepository(db *gorm.DB) StatusRepository {
	return &statusRepository{db: db}
}

func (r *statusRepository) WithTx(tx *gorm.DB) StatusRepository {
	return &statusRepository{db: tx}
}

// CreateMany inserts all rows in one statement
func (r *statusRepository) CreateMany(ctx context.Context, statuses []domain.MessageStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&statuses).Error
}

func (r *statusRepository) Find(ctx context.Context, messageID uint64, userID string) (*domain.MessageStatus, error) {
	var st domain.MessageStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *statusRepository) ListForMessage(ctx context.Context, messageID uint64) ([]domain.MessageStatus, error) {
	var statuses []domain.MessageStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("user_id ASC").
		Find(&statuses).Error
	return statuses, err
}

func (r *statusRepository) CompareAndSet(ctx context.Context, messageID uint64, userID string, from, to domain.Status) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.MessageStatus{}).
		Where("message_id = ? AND user_id = ? AND status = ? AND is_self = ?", messageID, userID, from, false).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// notSentBy 대화 내 userID가 보내지 않은 메시지 id 서브쿼리
func (r *statusRepository) notSentBy(conversationID, userID string) *gorm.DB {
	return r.db.Session(&gorm.Session{NewDB: true}).Model(&domain.Message{}).
		Select("id").
		Where("conversation_id = ? AND (sender_id IS NULL OR sender_id <> ?)", conversationID, userID)
}

func (r *statusRepository) BulkTransition(ctx context.Context, conversationID, userID string, from, to domain.Status) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.MessageStatus{}).
		Where("user_id = ? AND status = ?", userID, from).
		Where("message_id IN (?)", r.notSentBy(conversationID, userID)).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *statusRepository) SetAllForUser(ctx context.Context, conversationID, userID string, to domain.Status) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.MessageStatus{}).
		Where("conversation_id = ? AND user_id = ? AND status <> ?", conversationID, userID, to).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// CountActive rows in the conversation (any user) that are neither deleted nor archived
func (r *statusRepository) CountActive(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MessageStatus{}).
		Where("conversation_id = ? AND status NOT IN ?", conversationID, domain.DisposedStatuses).
		Count(&count).Error
	return count, err
}

// CountUnread unread messages for the user in a conversation, excluding messages the user sent
func (r *statusRepository) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("msg_message_statuses AS s").
		Joins("JOIN msg_messages AS m ON m.id = s.message_id").
		Where("m.conversation_id = ? AND s.user_id = ? AND s.status = ?", conversationID, userID, domain.StatusUnread).
		Where("m.sender_id IS NULL OR m.sender_id <> ?", userID).
		Count(&count).Error
	return count, err
}

func (r *statusRepository) CountUnreadByConversation(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ConversationID string
		Unread         int64
	}
	err := r.db.WithContext(ctx).Table("msg_message_statuses AS s").
		Select("m.conversation_id AS conversation_id, COUNT(*) AS unread").
		Joins("JOIN msg_messages AS m ON m.id = s.message_id").
		Where("m.conversation_id IN ? AND s.user_id = ? AND s.status = ?", conversationIDs, userID, domain.StatusUnread).
		Where("m.sender_id IS NULL OR m.sender_id <> ?", userID).
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Unread
	}
	return counts, nil
}

func (r *statusRepository) CountUnreadTotal(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("msg_message_statuses AS s").
		Joins("JOIN msg_messages AS m ON m.id = s.message_id").
		Where("s.user_id = ? AND s.status = ?", userID, domain.StatusUnread).
		Where("m.sender_id IS NULL OR m.sender_id <> ?", userID).
		Count(&count).Error
	return count, err
}

// UsersWithStatus users (other than the sender) whose row for messageID has the given status
func (r *statusRepository) UsersWithStatus(ctx context.Context, messageID uint64, status domain.Status) ([]string, error) {
	var users []string
	err := r.db.WithContext(ctx).Model(&domain.MessageStatus{}).
		Where("message_id = ? AND status = ? AND is_self = ?", messageID, status, false).
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	return users, err
}

func (r *statusRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&domain.MessageStatus{}).Error
}
