package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, tasks []*types.TaskItem) ([]*types.TaskItem, error)
	GetByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*types.TaskItem, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.TaskItem, error)
	Update(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID, updates map[string]any) (*types.TaskItem, error)
	SetCompleted(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID, completed bool) (*types.TaskItem, error)
	Delete(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) error
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	repoLog := baseLog.With("repo", "TaskRepo")
	return &taskRepo{db: db, log: repoLog}
}

// CreateBatch inserts all tasks in one transaction: extraction output is
// persisted all-or-nothing.
func (r *taskRepo) CreateBatch(ctx context.Context, tx *gorm.DB, tasks []*types.TaskItem) ([]*types.TaskItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(tasks) == 0 {
		return []*types.TaskItem{}, nil
	}

	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		return innerTx.Create(&tasks).Error
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepo) GetByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*types.TaskItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var task types.TaskItem
	err := transaction.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]*types.TaskItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.TaskItem
	if err := transaction.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taskRepo) Update(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID, updates map[string]any) (*types.TaskItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&types.TaskItem{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}
	return r.GetByID(ctx, transaction, ownerID, id)
}

func (r *taskRepo) SetCompleted(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID, completed bool) (*types.TaskItem, error) {
	updates := map[string]any{"completed": completed}
	if completed {
		now := time.Now()
		updates["completed_at"] = &now
	} else {
		updates["completed_at"] = nil
	}
	return r.Update(ctx, tx, ownerID, id, updates)
}

func (r *taskRepo) Delete(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&types.TaskItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
