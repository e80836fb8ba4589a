package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/backoffice/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounterRepositoryImpl implements SequenceCounterRepository interface
type SequenceCounterRepositoryImpl struct {
	DB *gorm.DB
}

func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{DB: db}
}

func (r *SequenceCounterRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.DB.WithContext(ctx)
}

// Next increments the named counter and returns the new value. A counter that
// does not exist yet starts at floor+1. The upsert holds the row lock until the
// surrounding transaction ends, so concurrent callers get distinct values.
func (r *SequenceCounterRepositoryImpl) Next(ctx context.Context, name string, floor int64) (int64, error) {
	var value int64
	err := r.write(ctx, func(db *gorm.DB) error {
		counter := models.SequenceCounter{Name: name, LastValue: floor + 1}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_value": gorm.Expr("sequence_counters.last_value + 1"),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&counter).Error
		if err != nil {
			return err
		}
		var stored models.SequenceCounter
		if err := db.Where("name = ?", name).First(&stored).Error; err != nil {
			return err
		}
		value = stored.LastValue
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return value, nil
}

func (r *SequenceCounterRepositoryImpl) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(tx)
	}
	return r.DB.WithContext(ctx).Transaction(fn)
}
