package repository

import (
	"context"
	"slices"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository conversation, participant and relation data access interface
type ConversationRepository interface {
	WithTx(tx *gorm.DB) ConversationRepository

	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error

	AddParticipants(ctx context.Context, conversationID string, userIDs []string, at time.Time) error
	Participants(ctx context.Context, conversationID string) ([]string, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	AddRelations(ctx context.Context, conversationID string, refs []domain.RelationRef, at time.Time) error
	Relations(ctx context.Context, conversationID string) ([]domain.Relation, error)

	// FindByExactParticipants returns the most recently updated conversation whose
	// participant set equals userIDs, or nil when there is none.
	FindByExactParticipants(ctx context.Context, userIDs []string, relation *domain.RelationRef) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string, relation *domain.RelationRef, offset, limit int) ([]*domain.Conversation, error)

	HardDelete(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error

	CreateType(ctx context.Context, t *domain.ConversationType) error
	FindType(ctx context.Context, id uint) (*domain.ConversationType, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) WithTx(tx *gorm.DB) ConversationRepository {
	return &conversationRepository{db: tx}
}

// Create inserts the conversation row only; participants and relations go through their own methods
func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(conv).Error
}

// FindByID loads a live conversation with participants and relations
func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id ASC") }).
		Preload("Relations").
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

// AddParticipants inserts membership rows; existing pairs are left untouched
func (r *conversationRepository) AddParticipants(ctx context.Context, conversationID string, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := lo.Map(lo.Uniq(userIDs), func(id string, _ int) domain.Participant {
		return domain.Participant{ConversationID: conversationID, UserID: id, JoinedAt: at}
	})
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// Participants returns the sorted user ids of a conversation
func (r *conversationRepository) Participants(ctx context.Context, conversationID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddRelations links external entities; duplicates of an existing triple are ignored
func (r *conversationRepository) AddRelations(ctx context.Context, conversationID string, refs []domain.RelationRef, at time.Time) error {
	refs = lo.UniqBy(refs, func(ref domain.RelationRef) string { return ref.Key() })
	if len(refs) == 0 {
		return nil
	}
	rows := lo.Map(refs, func(ref domain.RelationRef, _ int) domain.Relation {
		return domain.Relation{
			CreatedAt:      at,
			ConversationID: conversationID,
			RelatedType:    ref.Type,
			RelatedKind:    ref.Kind,
			RelatedID:      ref.ID,
		}
	})
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *conversationRepository) Relations(ctx context.Context, conversationID string) ([]domain.Relation, error) {
	var relations []domain.Relation
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&relations).Error
	return relations, err
}

// relatedTo 관계 대상과 연결된 대화 id 서브쿼리
func (r *conversationRepository) relatedTo(ref *domain.RelationRef) *gorm.DB {
	return r.db.Session(&gorm.Session{NewDB: true}).Model(&domain.Relation{}).
		Select("conversation_id").
		Where("related_type = ? AND related_kind = ? AND related_id = ?", ref.Type, ref.Kind, ref.ID)
}

func (r *conversationRepository) FindByExactParticipants(ctx context.Context, userIDs []string, relation *domain.RelationRef) (*domain.Conversation, error) {
	want := lo.Uniq(userIDs)
	slices.Sort(want)
	if len(want) == 0 {
		return nil, nil
	}

	// 후보 조회와 멤버 비교를 한 스냅샷에서
	var found *domain.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := (&conversationRepository{db: tx}).exactMatch(ctx, want, relation)
		found = conv
		return err
	})
	return found, err
}

func (r *conversationRepository) exactMatch(ctx context.Context, want []string, relation *domain.RelationRef) (*domain.Conversation, error) {
	// candidates: every requested user is a member; extra members are filtered below
	q := r.db.WithContext(ctx).Table("msg_participants AS p").
		Select("p.conversation_id").
		Joins("JOIN msg_conversations AS c ON c.id = p.conversation_id AND c.deleted_at IS NULL").
		Where("p.user_id IN ?", want).
		Group("p.conversation_id, c.updated_at").
		Having("COUNT(*) = ?", len(want)).
		Order("c.updated_at DESC")
	if relation != nil {
		q = q.Where("p.conversation_id IN (?)", r.relatedTo(relation))
	}

	var candidates []string
	if err := q.Pluck("p.conversation_id", &candidates).Error; err != nil {
		return nil, err
	}

	for _, id := range candidates {
		members, err := r.Participants(ctx, id)
		if err != nil {
			return nil, err
		}
		if slices.Equal(members, want) {
			return r.FindByID(ctx, id)
		}
	}
	return nil, nil
}

// ListForUser conversations where the user still has a visible message, most recently active first.
// limit <= 0 returns all of them.
func (r *conversationRepository) ListForUser(ctx context.Context, userID string, relation *domain.RelationRef, offset, limit int) ([]*domain.Conversation, error) {
	visible := r.db.Session(&gorm.Session{NewDB: true}).Model(&domain.MessageStatus{}).
		Select("conversation_id").
		Where("user_id = ? AND status NOT IN ?", userID, domain.DisposedStatuses)

	q := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id ASC") }).
		Preload("Relations").
		Where("id IN (?)", visible)
	if relation != nil {
		q = q.Where("id IN (?)", r.relatedTo(relation))
	}

	var convs []*domain.Conversation
	err := q.Order("updated_at DESC").Order("created_at DESC").
		Scopes(paginate(offset, limit)).
		Find(&convs).Error
	return convs, err
}

// HardDelete physically removes the conversation with its relations and participants
func (r *conversationRepository) HardDelete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("conversation_id = ?", id).Delete(&domain.Relation{}).Error; err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", id).Delete(&domain.Participant{}).Error; err != nil {
		return err
	}
	return db.Unscoped().Where("id = ?", id).Delete(&domain.Conversation{}).Error
}

// SoftDelete stamps deleted_at; the row disappears from default-scoped reads
func (r *conversationRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Conversation{}).Error
}

func (r *conversationRepository) CreateType(ctx context.Context, t *domain.ConversationType) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *conversationRepository) FindType(ctx context.Context, id uint) (*domain.ConversationType, error) {
	var t domain.ConversationType
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}
