// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BaseRepository carries the generic reads and writes shared by every table.
// F is the table's filter type; ByFilter and Count live on the concrete
// repository because every filter maps to SQL differently.
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{DB: db}
}

// txFromContext returns the transaction opened by WithTransaction, if any
func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(TxContextKey).(*gorm.DB)
	return tx, ok && tx != nil
}

// getDB joins the caller's transaction when there is one
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.DB.WithContext(ctx)
}

// write runs fn inside the caller's transaction, or a new one that commits
// when fn succeeds.
func (r *BaseRepository[T, F]) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(tx)
	}
	return r.DB.WithContext(ctx).Transaction(fn)
}

// forUpdate adds a row lock when the dialect supports it. SQLite serialises
// writers on its single connection instead.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (r *BaseRepository[T, F]) first(db *gorm.DB, id uint) (*T, error) {
	var entity T
	if err := db.First(&entity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %T %d: %w", entity, id, err)
	}
	return &entity, nil
}

// ByID returns the row with the given id, or nil when there is none
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	return r.first(r.getDB(ctx), id)
}

// ByIDForUpdate is ByID with a row lock held until the surrounding transaction ends
func (r *BaseRepository[T, F]) ByIDForUpdate(ctx context.Context, id uint) (*T, error) {
	return r.first(forUpdate(r.getDB(ctx)), id)
}

// Save inserts a new entity
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to save %T: %w", entity, err)
		}
		return nil
	})
}

// SaveBatch inserts entities in batches of 100 within one transaction
func (r *BaseRepository[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.CreateInBatches(entities, 100).Error; err != nil {
			return fmt.Errorf("failed to save %d rows: %w", len(entities), err)
		}
		return nil
	})
}

// UpdateColumns applies a partial update to the row with the given ID.
// A missing row yields gorm.ErrRecordNotFound.
func (r *BaseRepository[T, F]) UpdateColumns(ctx context.Context, id uint, updates map[string]any) error {
	return r.write(ctx, func(db *gorm.DB) error {
		var entity T
		res := db.Model(&entity).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update %T %d: %w", entity, id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to update %T %d: %w", entity, id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// WithTransaction runs fn with a context that every repository call joins.
// Nested calls reuse the outer transaction. An error or panic in fn rolls back.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, TxContextKey, tx))
	})
}

// page applies ordering and bounds shared by every ByFilter implementation
func page(db *gorm.DB, orderBy string, limit, offset int) *gorm.DB {
	if orderBy == "" {
		orderBy = "id DESC"
	}
	db = db.Order(orderBy)
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}
	return db
}
