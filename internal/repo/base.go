package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Entity is the data-access surface shared by every soft-deletable catalog
// table: lookup by id, full save, partial update and soft delete. T must be a
// gorm model with id, is_deleted, updated_by and updated_at columns.
type Entity[T any] struct {
	Base
}

func NewEntity[T any](db *gorm.DB) Entity[T] {
	return Entity[T]{Base: NewBase(db)}
}

// WithTx rebinds the entity store to an open transaction.
func (e Entity[T]) WithTx(tx *gorm.DB) Entity[T] {
	return Entity[T]{Base: NewBase(tx)}
}

// FindByID returns gorm.ErrRecordNotFound when the id does not resolve.
func (e Entity[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var row T
	if err := e.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDs returns the rows that resolve, in no particular order.
func (e Entity[T]) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	var rows []T
	if len(ids) == 0 {
		return rows, nil
	}
	err := e.DB(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// Save inserts or fully updates row without touching its associations.
func (e Entity[T]) Save(ctx context.Context, row *T) error {
	return e.DB(ctx).Omit(clause.Associations).Save(row).Error
}

// Create inserts row without touching its associations.
func (e Entity[T]) Create(ctx context.Context, row *T) error {
	return e.DB(ctx).Omit(clause.Associations).Create(row).Error
}

// UpdateFields applies a partial update and reports the affected row count.
func (e Entity[T]) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	var model T
	res := e.DB(ctx).Model(&model).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

// SoftDelete flags a single row deleted and stamps the actor.
func (e Entity[T]) SoftDelete(ctx context.Context, id, actor uuid.UUID) (int64, error) {
	return e.UpdateFields(ctx, id, lifecycleFields(true, actor))
}

// SetDeleted flips is_deleted on every listed row that is not already in the
// requested state.
func (e Entity[T]) SetDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, actor uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var model T
	res := e.DB(ctx).Model(&model).
		Where("id IN ?", ids).
		Where("is_deleted = ?", !deleted).
		Updates(lifecycleFields(deleted, actor))
	return res.RowsAffected, res.Error
}

func lifecycleFields(deleted bool, actor uuid.UUID) map[string]any {
	return map[string]any{
		"is_deleted": deleted,
		"updated_by": actor,
		"updated_at": time.Now().UTC(),
	}
}
