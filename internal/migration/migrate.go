package migration

import (
	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// Models every table owned by the messenger, in dependency order
func Models() []interface{} {
	return []interface{}{
		&domain.ConversationType{},
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Relation{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Reaction{},
		&domain.MessageStatus{},
	}
}

// Run executes AutoMigrate for the messenger tables and seeds default conversation types if empty.
func Run(db *gorm.DB) error {
	// 1. AutoMigrate - 테이블 없으면 생성, 있으면 컬럼/인덱스만 추가
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}

	// 2. Seed - 대화 유형이 비어있을 때만 기본값 삽입
	var count int64
	if err := db.Model(&domain.ConversationType{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return seedConversationTypes(db)
	}
	return nil
}

func seedConversationTypes(db *gorm.DB) error {
	types := []domain.ConversationType{
		{Slug: "direct", Names: domain.NewLocaleNames(map[string]string{"ko": "개인 대화", "en": "Direct message", "ja": "ダイレクトメッセージ"})},
		{Slug: "group", Names: domain.NewLocaleNames(map[string]string{"ko": "그룹 대화", "en": "Group chat", "ja": "グループチャット"})},
		{Slug: "support", Names: domain.NewLocaleNames(map[string]string{"ko": "고객 지원", "en": "Support", "ja": "サポート"})},
	}
	return db.Create(&types).Error
}
