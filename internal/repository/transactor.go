package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor runs a unit of work inside one database transaction
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor over db
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// Transaction commits when fn returns nil and rolls back otherwise
func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}
