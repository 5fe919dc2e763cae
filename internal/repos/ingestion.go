package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

var ErrIngestionNotFound = errors.New("ingestion not found")

// ErrInvalidTransition is returned when a status write would violate the
// pending -> processing -> {completed|failed} order.
var ErrInvalidTransition = errors.New("invalid ingestion status transition")

type IngestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ing *types.Ingestion) error
	GetByID(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string) (*types.Ingestion, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, limit int) ([]*types.Ingestion, error)

	MarkProcessing(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string, meta map[string]any) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string, fields map[string]any) error
	MarkFailed(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string, errorMessage string) error
}

type ingestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestionRepo(db *gorm.DB, baseLog *logger.Logger) IngestionRepo {
	repoLog := baseLog.With("repo", "IngestionRepo")
	return &ingestionRepo{db: db, log: repoLog}
}

func (r *ingestionRepo) Create(ctx context.Context, tx *gorm.DB, ing *types.Ingestion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ing == nil {
		return fmt.Errorf("ingestion required")
	}
	return transaction.WithContext(ctx).Create(ing).Error
}

func (r *ingestionRepo) GetByID(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string) (*types.Ingestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ing types.Ingestion
	err := transaction.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&ing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIngestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

func (r *ingestionRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, limit int) ([]*types.Ingestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*types.Ingestion
	if err := transaction.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkProcessing moves pending -> processing and records provenance
// metadata discovered by the probe. The WHERE on the prior status is what
// enforces monotonicity: a record already past pending is not touched.
func (r *ingestionRepo) MarkProcessing(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string, meta map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	updates := map[string]any{"status": types.IngestionStatusProcessing}
	for k, v := range meta {
		updates[k] = v
	}

	res := transaction.WithContext(ctx).
		Model(&types.Ingestion{}).
		Where("owner_id = ? AND id = ? AND status = ?", ownerID, id, types.IngestionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (r *ingestionRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	updates := map[string]any{
		"status":       types.IngestionStatusCompleted,
		"completed_at": &now,
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := transaction.WithContext(ctx).
		Model(&types.Ingestion{}).
		Where("owner_id = ? AND id = ? AND status = ?", ownerID, id, types.IngestionStatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkFailed is valid from either non-terminal status: validation failures
// happen before processing begins, stage failures after.
func (r *ingestionRepo) MarkFailed(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, id string, errorMessage string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.Ingestion{}).
		Where("owner_id = ? AND id = ? AND status IN ?", ownerID, id,
			[]string{types.IngestionStatusPending, types.IngestionStatusProcessing}).
		Updates(map[string]any{
			"status":        types.IngestionStatusFailed,
			"error_message": errorMessage,
			"completed_at":  &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}
