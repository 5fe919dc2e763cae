package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

type StickyRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, stickies []*types.LearningSticky) ([]*types.LearningSticky, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, domain string) ([]*types.LearningSticky, error)
	DistinctDomains(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]string, error)
	// CombineDomains relabels every sticky under the from labels to the to
	// label in one bulk update. Domains are soft labels, so a merge is a
	// relabel, not a schema change.
	CombineDomains(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, from []string, to string) (int64, error)
}

type stickyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStickyRepo(db *gorm.DB, baseLog *logger.Logger) StickyRepo {
	repoLog := baseLog.With("repo", "StickyRepo")
	return &stickyRepo{db: db, log: repoLog}
}

func (r *stickyRepo) CreateBatch(ctx context.Context, tx *gorm.DB, stickies []*types.LearningSticky) ([]*types.LearningSticky, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(stickies) == 0 {
		return []*types.LearningSticky{}, nil
	}

	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		return innerTx.Create(&stickies).Error
	})
	if err != nil {
		return nil, err
	}
	return stickies, nil
}

func (r *stickyRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, domain string) ([]*types.LearningSticky, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Where("owner_id = ?", ownerID)
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}

	var results []*types.LearningSticky
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *stickyRepo) DistinctDomains(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var domains []string
	if err := transaction.WithContext(ctx).
		Model(&types.LearningSticky{}).
		Where("owner_id = ? AND domain IS NOT NULL", ownerID).
		Distinct().
		Order("domain").
		Pluck("domain", &domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

func (r *stickyRepo) CombineDomains(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, from []string, to string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(from) == 0 || to == "" {
		return 0, nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.LearningSticky{}).
		Where("owner_id = ? AND domain IN ?", ownerID, from).
		Update("domain", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
